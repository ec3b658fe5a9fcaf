// Package diag defines the structured diagnostic record shared by every
// compiler backend, the pure formatter that normalizes raw toolchain output
// into it, and renderers for text, JSON and msgpack reports.
//
// # Overview
//
// Backends collect [Raw] records while mapping their toolchain's errors and
// pass them through [Format]. The result keeps the order the toolchain
// produced them in.
//
//	diags := diag.Format([]diag.Raw{{File: "main.js", Line: 5, Column: 12, Code: "JS1001", Message: "Unexpected token ;"}})
//	fmt.Println(diags[0]) // main.js(5,12): error JS1001: Unexpected token ;
package diag

import "fmt"

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// UnknownCode is used when a toolchain reports no code.
const UnknownCode = "UNKNOWN"

// Diagnostic is a compiler-reported problem with a location.
// Line and Column are 1-based; 0 means the toolchain did not report one.
type Diagnostic struct {
	Severity Severity `json:"severity" msgpack:"severity"`
	File     string   `json:"file" msgpack:"file"`
	Line     int      `json:"line" msgpack:"line"`
	Column   int      `json:"column" msgpack:"column"`
	Code     string   `json:"code" msgpack:"code"`
	Message  string   `json:"message" msgpack:"message"`
}

// String renders the diagnostic as file(line,col): severity CODE: message.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s(%d,%d): %s %s: %s", d.File, d.Line, d.Column, d.Severity, d.Code, d.Message)
}

// IsError reports whether the diagnostic fails a compilation.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// Raw is a diagnostic as a backend first sees it, before normalization.
type Raw struct {
	Severity Severity
	File     string
	Line     int
	Column   int
	Code     string
	Message  string
}

// HasErrors reports whether any diagnostic in the list is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.IsError() {
			return true
		}
	}
	return false
}
