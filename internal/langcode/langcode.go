// Package langcode translates between the codes a language identifier emits
// and the codes Tesseract expects.
package langcode

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is the code identifiers emit when they can't decide.
const Undetermined = "und"

// Set is the ordered, immutable set of Tesseract language codes a deployment supports.
type Set struct {
	codes []string
	index map[string]struct{}
}

// NewSet returns a Set in the given order. Duplicates are dropped.
func NewSet(codes ...string) (*Set, error) {
	s := &Set{index: make(map[string]struct{}, len(codes))}
	for _, code := range codes {
		if code == "" || strings.Contains(code, "+") {
			return nil, fmt.Errorf("invalid language code %q", code)
		}
		if _, dup := s.index[code]; dup {
			continue
		}
		s.index[code] = struct{}{}
		s.codes = append(s.codes, code)
	}
	if len(s.codes) == 0 {
		return nil, errors.New("no languages configured")
	}
	return s, nil
}

func (s *Set) Contains(code string) bool {
	_, ok := s.index[code]
	return ok
}

// Codes returns a copy of the codes in configured order.
func (s *Set) Codes() []string {
	return slices.Clone(s.codes)
}

// Spec joins all codes the way Tesseract combines models, e.g. `eng+deu`.
func (s *Set) Spec() string {
	return strings.Join(s.codes, "+")
}

// ContainsSpec reports whether every part of a `+`-joined spec is supported.
func (s *Set) ContainsSpec(spec string) bool {
	if spec == "" {
		return false
	}
	for _, code := range strings.Split(spec, "+") {
		if !s.Contains(code) {
			return false
		}
	}
	return true
}

// Mapping redirects identifier codes to Tesseract codes where the vocabularies diverge.
// It is read-only after construction and safe for concurrent use.
type Mapping struct {
	set      *Set
	targets  map[string]string
	fallback string
}

// NewMapping validates that the fallback and every target are members of set.
func NewMapping(set *Set, pairs map[string]string, fallback string) (*Mapping, error) {
	if set == nil {
		return nil, errors.New("no language set")
	}
	if !set.Contains(fallback) {
		return nil, fmt.Errorf("default language %q is not supported", fallback)
	}
	targets := make(map[string]string, len(pairs))
	for from, to := range pairs {
		if !set.Contains(to) {
			return nil, fmt.Errorf("language map target %q (from %q) is not supported", to, from)
		}
		targets[from] = to
	}
	return &Mapping{set: set, targets: targets, fallback: fallback}, nil
}

// Default returns the code used when nothing else applies.
func (m *Mapping) Default() string {
	return m.fallback
}

// Set returns the supported languages the mapping was built for.
func (m *Mapping) Set() *Set {
	return m.set
}

// Normalize returns the Tesseract code for an identifier code.
// A mapped target wins over a literal match, unknown codes resolve to the default.
// The result is always a member of the set.
func (m *Mapping) Normalize(code string) string {
	if to, ok := m.targets[code]; ok && m.set.Contains(to) {
		return to
	}
	if m.set.Contains(code) {
		return code
	}
	return m.fallback
}

// IdentifierVocabulary lists the identifier codes that can lead to a supported language:
// each supported code plus the mapping keys pointing to it.
// `und` and other keys only reachable as a fallback are left out.
func (m *Mapping) IdentifierVocabulary() []string {
	vocab := make([]string, 0, len(m.set.codes)+len(m.targets))
	for _, code := range m.set.codes {
		vocab = append(vocab, code)
		var keys []string
		for from, to := range m.targets {
			if to == code && from != code && from != Undetermined {
				keys = append(keys, from)
			}
		}
		slices.Sort(keys)
		vocab = append(vocab, keys...)
	}
	return vocab
}

// Name returns the English name of a Tesseract code, e.g. "German" for `deu`.
// Codes unknown to x/text are returned as is.
func Name(code string) string {
	tag, err := language.Parse(tesseractToBCP47(code))
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// tesseractToBCP47 rewrites script suffixes Tesseract uses.
func tesseractToBCP47(code string) string {
	base, variant, found := strings.Cut(code, "_")
	if !found {
		return base
	}
	switch variant {
	case "sim":
		return base + "-Hans"
	case "tra":
		return base + "-Hant"
	case "cyrl":
		return base + "-Cyrl"
	case "latn":
		return base + "-Latn"
	}
	return base
}
