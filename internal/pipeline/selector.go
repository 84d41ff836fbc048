package pipeline

import (
	"fmt"
	"strings"

	"github.com/johbar/ocr-language-service/internal/langcode"
)

// Mode tells the pipeline how to choose languages.
type Mode int

const (
	// Explicit recognizes with the languages given by the caller
	Explicit Mode = iota
	// AllSupported recognizes once with all supported languages combined
	AllSupported
	// AutoDetect recognizes broadly, identifies the language and recognizes again
	AutoDetect
)

func (m Mode) String() string {
	switch m {
	case Explicit:
		return "explicit"
	case AllSupported:
		return "all"
	case AutoDetect:
		return "detect"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Selector is the caller's choice of languages.
type Selector struct {
	Mode Mode
	// Spec is the `+`-joined language spec, set for Explicit only
	Spec string
}

func ExplicitSelector(spec string) Selector {
	return Selector{Mode: Explicit, Spec: spec}
}

func AllSupportedSelector() Selector {
	return Selector{Mode: AllSupported}
}

func AutoDetectSelector() Selector {
	return Selector{Mode: AutoDetect}
}

func (s Selector) String() string {
	if s.Mode == Explicit {
		return s.Spec
	}
	return s.Mode.String()
}

// Tokens are the selector values requesting the non-explicit modes.
type Tokens struct {
	Detect string
	All    string
}

// DefaultTokens are `detect` and `all`.
var DefaultTokens = Tokens{Detect: "detect", All: "all"}

// ParseSelector turns the raw request value into a Selector.
// An empty value selects the default language. Explicit values may combine
// several supported codes with `+`.
func ParseSelector(raw string, tokens Tokens, mapping *langcode.Mapping) (Selector, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == tokens.Detect:
		return AutoDetectSelector(), nil
	case raw == tokens.All:
		return AllSupportedSelector(), nil
	case raw == "":
		return ExplicitSelector(mapping.Default()), nil
	case mapping.Set().ContainsSpec(raw):
		return ExplicitSelector(raw), nil
	}
	return Selector{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, raw)
}
