package diag

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/vmihailenco/msgpack/v5"
)

// TextOptions controls WriteText.
type TextOptions struct {
	Color bool
}

// WriteText writes one diagnostic per line followed by a summary line.
func WriteText(w io.Writer, diags []Diagnostic, opts TextOptions) error {
	errStyle := color.New(color.FgRed, color.Bold)
	warnStyle := color.New(color.FgYellow, color.Bold)
	locStyle := color.New(color.Bold)
	if !opts.Color {
		errStyle.DisableColor()
		warnStyle.DisableColor()
		locStyle.DisableColor()
	}

	var errors, warnings int
	for _, d := range diags {
		sev := errStyle
		if d.Severity == SeverityWarning {
			sev = warnStyle
			warnings++
		} else {
			errors++
		}
		loc := locStyle.Sprintf("%s(%d,%d):", d.File, d.Line, d.Column)
		if _, err := fmt.Fprintf(w, "%s %s %s\n", loc, sev.Sprintf("%s %s:", d.Severity, d.Code), d.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d error(s), %d warning(s)\n", errors, warnings)
	return err
}

// Report is the envelope written by WriteJSON and WriteMsgpack.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
	Count       int          `json:"count" msgpack:"count"`
}

func newReport(diags []Diagnostic) Report {
	if diags == nil {
		diags = []Diagnostic{}
	}
	return Report{Diagnostics: diags, Count: len(diags)}
}

// WriteJSON writes diagnostics as an indented JSON report.
func WriteJSON(w io.Writer, diags []Diagnostic) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newReport(diags))
}

// WriteMsgpack writes diagnostics as a msgpack encoded report.
func WriteMsgpack(w io.Writer, diags []Diagnostic) error {
	if err := msgpack.NewEncoder(w).Encode(newReport(diags)); err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	return nil
}

// ReadMsgpack decodes a report written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (Report, error) {
	var rep Report
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&rep); err != nil {
		return Report{}, fmt.Errorf("decode diagnostics: %w", err)
	}
	return rep, nil
}
