package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/caffeineduck/hotrun/diag"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in   string
		want Tag
	}{
		{"javascript", JavaScript},
		{"JS", JavaScript},
		{"lua", Lua},
		{" Starlark ", Starlark},
		{"star", Starlark},
	}
	for _, tt := range tests {
		got, err := ParseTag(tt.in)
		if err != nil {
			t.Errorf("ParseTag(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "Python", "c#"} {
		if _, err := ParseTag(bad); !errors.Is(err, ErrUnsupportedLanguage) {
			t.Errorf("ParseTag(%q): expected unsupported language, got %v", bad, err)
		}
	}
}

func TestTags(t *testing.T) {
	if diff := cmp.Diff([]Tag{JavaScript, Lua, Starlark}, Tags()); diff != "" {
		t.Errorf("unexpected tags (-want +got):\n%s", diff)
	}
	if Tag(0).Valid() || Tag(200).Valid() {
		t.Error("expected out-of-range tags to be invalid")
	}
	if got := Tag(200).String(); got != "Tag(200)" {
		t.Errorf("unexpected invalid tag string %q", got)
	}
}

func TestNewSelectorValidation(t *testing.T) {
	if _, err := NewSelector(); err == nil {
		t.Error("expected error for empty selector")
	}
	if _, err := NewSelector(nil); err == nil {
		t.Error("expected error for nil backend")
	}
	if _, err := NewSelector(newMockLanguage(Lua), newMockLanguage(Lua)); err == nil {
		t.Error("expected error for duplicate tag")
	}
	if _, err := NewSelector(newMockLanguage(Tag(99))); err == nil {
		t.Error("expected error for invalid tag")
	}
}

func TestSelectorSelect(t *testing.T) {
	js, lua := newMockLanguage(JavaScript), newMockLanguage(Lua)
	s, err := NewSelector(lua, js)
	if err != nil {
		t.Fatalf("NewSelector failed: %v", err)
	}

	got, err := s.Select(Lua)
	if err != nil || got != lua {
		t.Errorf("Select(Lua) = %v, %v", got, err)
	}

	if _, err := s.Select(Starlark); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("expected unsupported language for unregistered tag, got %v", err)
	}

	langs := s.Languages()
	if len(langs) != 2 || langs[0] != js || langs[1] != lua {
		t.Errorf("expected languages in tag order, got %v", langs)
	}

	if js.compiles.Load() != 0 || lua.compiles.Load() != 0 {
		t.Error("selection must not compile anything")
	}
}

func TestSelectorForFile(t *testing.T) {
	s, err := NewSelector(newMockLanguage(JavaScript))
	if err != nil {
		t.Fatalf("NewSelector failed: %v", err)
	}
	if _, err := s.ForFile("demo.MOCK"); err != nil {
		t.Errorf("expected extension match, got %v", err)
	}
	if _, err := s.ForFile("demo.py"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("expected unsupported language, got %v", err)
	}
	if _, err := s.ForFile("Makefile"); err == nil {
		t.Error("expected error for file without extension")
	}
}

func TestResolveIsCaseSensitive(t *testing.T) {
	lang := newMockLanguage(JavaScript)
	unit, err := lang.Compile(context.Background(), Source{Text: "Program.Main return\nProgram.helper return"}, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	entry, err := Resolve(unit, "Program", "Main")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if entry.Language != JavaScript {
		t.Errorf("expected JavaScript entry, got %v", entry.Language)
	}

	if _, err := Resolve(unit, "program", "Main"); !IsNotFound(err, KindClass) {
		t.Errorf("expected class not found for lowercase class, got %v", err)
	}
	if _, err := Resolve(unit, "Program", "main"); !IsNotFound(err, KindMethod) {
		t.Errorf("expected method not found for lowercase method, got %v", err)
	}
	if _, err := Resolve(nil, "Program", "Main"); !errors.Is(err, ErrNoUnit) {
		t.Errorf("expected ErrNoUnit, got %v", err)
	}
}

func TestSymbolsOrder(t *testing.T) {
	s := NewSymbols()
	s.Define("B").Define("y", nil)
	s.Define("A").Define("x", nil)
	s.Define("B").Define("z", nil)
	s.Define("B").Define("y", nil)

	if diff := cmp.Diff([]string{"B", "A"}, s.Classes()); diff != "" {
		t.Errorf("unexpected classes (-want +got):\n%s", diff)
	}
	b, _ := s.Class("B")
	if diff := cmp.Diff([]string{"y", "z"}, b.Methods()); diff != "" {
		t.Errorf("unexpected methods (-want +got):\n%s", diff)
	}
}

func TestCompilationErrorMessage(t *testing.T) {
	err := &CompilationError{Diagnostics: diag.Format([]diag.Raw{
		{File: "main.js", Line: 5, Column: 3, Code: "JS1001", Message: "Unexpected token"},
		{File: "main.js", Line: 6, Column: 1, Code: "JS1001", Message: "Unexpected end"},
	})}

	want := "compilation failed: main.js(5,3): error JS1001: Unexpected token (and 1 more)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, ErrCompilation) {
		t.Error("expected errors.Is ErrCompilation")
	}
}

func TestReferenceSet(t *testing.T) {
	r := NewReferenceSet("time", "console", " ", "time")
	if diff := cmp.Diff([]string{"console", "time"}, r.IDs()); diff != "" {
		t.Errorf("unexpected ids (-want +got):\n%s", diff)
	}

	clone := r.Clone()
	clone.Add("kv")
	if r.Has("kv") {
		t.Error("clone must not share state")
	}
	if !r.Remove("time") || r.Remove("time") {
		t.Error("unexpected remove results")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 id, got %d", r.Len())
	}
}
