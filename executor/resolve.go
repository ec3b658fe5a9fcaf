package executor

import (
	"context"
	"errors"
)

// DefaultClass and DefaultMethod name the entry point every language
// template defines.
const (
	DefaultClass  = "Program"
	DefaultMethod = "Main"
)

// EntryPoint is a resolved, invokable method of a unit.
type EntryPoint struct {
	Class    string
	Method   string
	Language Tag

	invoke Invoker
}

// Invoke runs the entry point on the calling goroutine.
func (e *EntryPoint) Invoke(ctx context.Context) error {
	return e.invoke(ctx)
}

// Resolve looks up class and then method in unit. Matching is exact and
// case-sensitive. Nothing is executed.
func Resolve(unit Unit, class, method string) (*EntryPoint, error) {
	if unit == nil {
		return nil, ErrNoUnit
	}

	c, ok := unit.Symbols().Class(class)
	if !ok {
		return nil, &EntryPointNotFoundError{Kind: KindClass, Name: class}
	}
	fn, ok := c.Method(method)
	if !ok || fn == nil {
		return nil, &EntryPointNotFoundError{Kind: KindMethod, Name: method, Class: class}
	}

	return &EntryPoint{
		Class:    class,
		Method:   method,
		Language: unit.Language(),
		invoke:   fn,
	}, nil
}

// IsNotFound reports whether err is an entry point lookup failure of kind.
func IsNotFound(err error, kind EntryPointKind) bool {
	var nf *EntryPointNotFoundError
	return errors.As(err, &nf) && nf.Kind == kind
}
