package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/caffeineduck/hotrun/hostfunc"
)

// Tag identifies a supported source language. The set is closed.
type Tag uint8

const (
	tagInvalid Tag = iota
	JavaScript
	Lua
	Starlark
	tagEnd
)

var tagNames = [...]string{
	JavaScript: "javascript",
	Lua:        "lua",
	Starlark:   "starlark",
}

var tagAliases = map[string]Tag{
	"javascript": JavaScript,
	"js":         JavaScript,
	"lua":        Lua,
	"starlark":   Starlark,
	"star":       Starlark,
}

// Tags returns every valid tag in declaration order.
func Tags() []Tag {
	tags := make([]Tag, 0, int(tagEnd)-1)
	for t := tagInvalid + 1; t < tagEnd; t++ {
		tags = append(tags, t)
	}
	return tags
}

// Valid reports whether t is one of the enumerated languages.
func (t Tag) Valid() bool {
	return t > tagInvalid && t < tagEnd
}

func (t Tag) String() string {
	if t.Valid() {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// ParseTag maps a language name or alias to its tag, ignoring case.
func ParseTag(name string) (Tag, error) {
	if tag, ok := tagAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tag, nil
	}
	return tagInvalid, &UnsupportedLanguageError{Name: name}
}

// Source is the text handed to a backend. Name labels diagnostics.
type Source struct {
	Name     string
	Text     string
	Language Tag
}

// Language is a compiler backend for one source language.
type Language interface {
	// Tag returns the language this backend compiles.
	Tag() Tag

	// Name returns a human readable name, e.g. "JavaScript".
	Name() string

	// Extensions returns file extensions, preferred first, e.g. ".js".
	Extensions() []string

	// Template returns a starter program defining Program.Main.
	Template() string

	// Compile turns src into a Unit in memory. The referenced libraries are
	// made visible to the unit's code. A compilation failure is reported as a
	// *CompilationError; a Unit and an error are never both returned.
	Compile(ctx context.Context, src Source, libs []hostfunc.Library) (Unit, error)
}
