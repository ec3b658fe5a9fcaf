package diag

import (
	"path"
	"strings"
)

// Format normalizes raw toolchain records into diagnostics. It performs no
// I/O and preserves input order.
func Format(raw []Raw) []Diagnostic {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Diagnostic, 0, len(raw))
	for _, r := range raw {
		out = append(out, Diagnostic{
			Severity: normalizeSeverity(r.Severity),
			File:     fileLabel(r.File),
			Line:     max(r.Line, 0),
			Column:   max(r.Column, 0),
			Code:     normalizeCode(r.Code),
			Message:  normalizeMessage(r.Message),
		})
	}
	return out
}

func normalizeSeverity(s Severity) Severity {
	switch s {
	case SeverityWarning:
		return SeverityWarning
	default:
		return SeverityError
	}
}

func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return UnknownCode
	}
	return code
}

// fileLabel keeps only the last path element. Both separators are handled
// since labels may come from any platform.
func fileLabel(file string) string {
	file = strings.TrimSpace(file)
	if file == "" {
		return ""
	}
	file = strings.ReplaceAll(file, "\\", "/")
	return path.Base(file)
}

func normalizeMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	// Toolchains sometimes pad multi-line messages; collapse to one line.
	if strings.ContainsAny(msg, "\r\n") {
		fields := strings.FieldsFunc(msg, func(r rune) bool { return r == '\n' || r == '\r' })
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		msg = strings.Join(fields, " ")
	}
	return msg
}
