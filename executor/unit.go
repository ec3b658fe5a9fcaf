package executor

import "context"

// Unit is an immutable compiled program. Its Symbols are the only way to
// reach code inside it.
type Unit interface {
	Language() Tag
	Symbols() *Symbols
}

// Invoker runs one method of a unit in a fresh runtime. It must return
// promptly once ctx is cancelled.
type Invoker func(ctx context.Context) error

// Symbols is the explicit registry a backend builds while compiling: class
// names mapped to their public zero-argument methods. Backends populate it
// before returning the unit and never change it afterwards.
type Symbols struct {
	classes map[string]*Class
	order   []string
}

func NewSymbols() *Symbols {
	return &Symbols{classes: make(map[string]*Class)}
}

// Define returns the class called name, creating it if needed.
func (s *Symbols) Define(name string) *Class {
	if c, ok := s.classes[name]; ok {
		return c
	}
	c := &Class{name: name, methods: make(map[string]Invoker)}
	s.classes[name] = c
	s.order = append(s.order, name)
	return c
}

// Class looks up a class by exact name.
func (s *Symbols) Class(name string) (*Class, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.classes[name]
	return c, ok
}

// Classes returns class names in declaration order.
func (s *Symbols) Classes() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Class is a named group of invokable methods.
type Class struct {
	name    string
	methods map[string]Invoker
	order   []string
}

func (c *Class) Name() string { return c.name }

// Define registers an invokable method. A later definition of the same name
// replaces the earlier one, matching assignment semantics in script code.
func (c *Class) Define(method string, fn Invoker) {
	if _, ok := c.methods[method]; !ok {
		c.order = append(c.order, method)
	}
	c.methods[method] = fn
}

// Method looks up a method by exact name.
func (c *Class) Method(name string) (Invoker, bool) {
	fn, ok := c.methods[name]
	return fn, ok
}

// Methods returns method names in declaration order.
func (c *Class) Methods() []string {
	return append([]string(nil), c.order...)
}
