package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caffeineduck/hotrun/diag"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrCompilation         = errors.New("compilation failed")
	ErrEntryPointNotFound  = errors.New("entry point not found")
	ErrExecutionFault      = errors.New("execution fault")
	ErrTimeout             = errors.New("timeout")
	ErrHostClosed          = errors.New("host closed")
	ErrSessionClosed       = errors.New("session closed")
	ErrNoUnit              = errors.New("nothing compiled")
)

// errStopped and errSuperseded are cancellation causes. Neither is a fault.
var (
	errStopped    = errors.New("stopped")
	errSuperseded = errors.New("superseded by a new run")
)

// UnsupportedLanguageError reports a language tag with no registered backend.
type UnsupportedLanguageError struct {
	Name string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Name)
}

func (e *UnsupportedLanguageError) Is(target error) bool {
	return target == ErrUnsupportedLanguage
}

// CompilationError carries the diagnostics of a failed compilation. It is
// never returned with an empty Diagnostics list.
type CompilationError struct {
	Diagnostics []diag.Diagnostic
}

func (e *CompilationError) Error() string {
	if len(e.Diagnostics) == 0 {
		return ErrCompilation.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrCompilation, e.Diagnostics[0])
	if n := len(e.Diagnostics) - 1; n > 0 {
		fmt.Fprintf(&b, " (and %d more)", n)
	}
	return b.String()
}

func (e *CompilationError) Is(target error) bool {
	return target == ErrCompilation
}

// EntryPointKind says which half of an entry point lookup failed.
type EntryPointKind int

const (
	KindClass EntryPointKind = iota
	KindMethod
)

func (k EntryPointKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	default:
		return fmt.Sprintf("EntryPointKind(%d)", int(k))
	}
}

// EntryPointNotFoundError reports a missing class, or a class without a
// public zero-argument method of the requested name.
type EntryPointNotFoundError struct {
	Kind  EntryPointKind
	Name  string
	Class string // set for KindMethod
}

func (e *EntryPointNotFoundError) Error() string {
	if e.Kind == KindMethod {
		return fmt.Sprintf("entry point not found: class %q has no public zero-argument method %q", e.Class, e.Name)
	}
	return fmt.Sprintf("entry point not found: class %q", e.Name)
}

func (e *EntryPointNotFoundError) Is(target error) bool {
	return target == ErrEntryPointNotFound
}

// ExecutionFault is an uncaught failure raised while an entry point ran.
type ExecutionFault struct {
	Class  string
	Method string
	Err    error
}

func (e *ExecutionFault) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Class, e.Method, e.Err)
}

func (e *ExecutionFault) Unwrap() error {
	return e.Err
}

func (e *ExecutionFault) Is(target error) bool {
	return target == ErrExecutionFault
}
