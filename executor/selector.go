package executor

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Selector maps language tags to compiler backends. It is immutable after
// construction and never falls back to a default backend.
type Selector struct {
	langs map[Tag]Language
}

// NewSelector builds a selector from the supplied backends.
func NewSelector(langs ...Language) (*Selector, error) {
	s := &Selector{langs: make(map[Tag]Language, len(langs))}

	for _, lang := range langs {
		if lang == nil {
			return nil, fmt.Errorf("language backend cannot be nil")
		}
		tag := lang.Tag()
		if !tag.Valid() {
			return nil, fmt.Errorf("language backend %q has invalid tag %v", lang.Name(), tag)
		}
		if _, exists := s.langs[tag]; exists {
			return nil, fmt.Errorf("duplicate language backend for %v", tag)
		}
		s.langs[tag] = lang
	}

	if len(s.langs) == 0 {
		return nil, fmt.Errorf("at least one language backend must be registered")
	}
	return s, nil
}

// Select returns the backend for tag or an *UnsupportedLanguageError.
func (s *Selector) Select(tag Tag) (Language, error) {
	lang, ok := s.langs[tag]
	if !ok {
		return nil, &UnsupportedLanguageError{Name: tag.String()}
	}
	return lang, nil
}

// SelectName parses name and selects its backend.
func (s *Selector) SelectName(name string) (Language, error) {
	tag, err := ParseTag(name)
	if err != nil {
		return nil, err
	}
	return s.Select(tag)
}

// ForFile selects a backend by the extension of filename.
func (s *Selector) ForFile(filename string) (Language, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		for _, lang := range s.Languages() {
			for _, e := range lang.Extensions() {
				if e == ext {
					return lang, nil
				}
			}
		}
	}
	return nil, &UnsupportedLanguageError{Name: ext}
}

// Languages returns the registered backends in tag order.
func (s *Selector) Languages() []Language {
	out := make([]Language, 0, len(s.langs))
	for _, tag := range Tags() {
		if lang, ok := s.langs[tag]; ok {
			out = append(out, lang)
		}
	}
	return out
}
