/*
Package pipeline runs OCR with optional language auto-detection.

In auto-detect mode the image is recognized with all supported languages
combined first. If that pass yields enough text, its language is identified
and the image is recognized a second time with the identified language only.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/johbar/ocr-language-service/internal/langcode"
)

var (
	// ErrInputMissing is returned when no image was supplied
	ErrInputMissing = errors.New("no image supplied")
	// ErrOCRFailed wraps every failure of the OCR engine
	ErrOCRFailed = errors.New("OCR failed")
	// ErrUnsupportedLanguage is returned for selectors naming languages not configured
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// DefaultThreshold is the first pass text length (in characters) needed for identification.
const DefaultThreshold = 50

// Recognizer extracts text from image bytes using a `+`-joined language spec.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte, langs string) (string, error)
}

// Identifier returns the identifier code of the language of text, or "und".
type Identifier interface {
	Identify(text string, whitelist []string) string
}

// Normalizer maps identifier codes to supported OCR codes.
type Normalizer interface {
	Normalize(code string) string
}

// Result is the outcome of a single pipeline run.
type Result struct {
	Text string
	// Languages is the spec used for the pass that produced Text
	Languages string
	// Detected is the identifier's raw guess, empty unless identification ran
	Detected string
	// Passes counts calls to the Recognizer
	Passes int
}

// Pipeline is read-only after construction and may serve concurrent requests.
type Pipeline struct {
	recognizer Recognizer
	identifier Identifier
	mapping    *langcode.Mapping
	normalizer Normalizer
	whitelist  []string
	threshold  int
	log        *slog.Logger
}

type Option func(*Pipeline)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(n int) Option {
	return func(p *Pipeline) {
		p.threshold = n
	}
}

// WithNormalizer replaces the mapping as normalizer.
func WithNormalizer(n Normalizer) Option {
	return func(p *Pipeline) {
		p.normalizer = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.log = logger
		}
	}
}

func New(recognizer Recognizer, identifier Identifier, mapping *langcode.Mapping, opts ...Option) *Pipeline {
	p := &Pipeline{
		recognizer: recognizer,
		identifier: identifier,
		mapping:    mapping,
		normalizer: mapping,
		whitelist:  mapping.IdentifierVocabulary(),
		threshold:  DefaultThreshold,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mapping returns the language configuration of the pipeline.
func (p *Pipeline) Mapping() *langcode.Mapping {
	return p.mapping
}

// Threshold returns the minimum first pass length triggering identification.
func (p *Pipeline) Threshold() int {
	return p.threshold
}

// Run recognizes img according to sel.
func (p *Pipeline) Run(ctx context.Context, img []byte, sel Selector) (Result, error) {
	if len(img) == 0 {
		return Result{}, ErrInputMissing
	}
	switch sel.Mode {
	case Explicit:
		return p.direct(ctx, img, sel.Spec)
	case AllSupported:
		return p.direct(ctx, img, p.mapping.Set().Spec())
	case AutoDetect:
		return p.detect(ctx, img)
	}
	return Result{}, fmt.Errorf("unknown selector mode %v", sel.Mode)
}

func (p *Pipeline) direct(ctx context.Context, img []byte, langs string) (Result, error) {
	text, err := p.recognize(ctx, img, langs)
	if err != nil {
		return Result{Passes: 1}, err
	}
	return Result{Text: text, Languages: langs, Passes: 1}, nil
}

func (p *Pipeline) detect(ctx context.Context, img []byte) (Result, error) {
	all := p.mapping.Set().Spec()
	initial, err := p.recognize(ctx, img, all)
	if err != nil {
		return Result{Passes: 1}, err
	}
	length := utf8.RuneCountInString(initial)
	if length <= p.threshold {
		p.log.Debug("First pass text too short for language detection", "length", length, "threshold", p.threshold)
		return Result{Text: initial, Languages: all, Passes: 1}, nil
	}
	detected := p.identifier.Identify(initial, p.whitelist)
	langs := p.normalizer.Normalize(detected)
	if !p.mapping.Set().Contains(langs) {
		// a custom normalizer broke its contract
		p.log.Warn("Normalized language is not supported, using default", "lang", langs)
		langs = p.mapping.Default()
	}
	p.log.Info("Language detected", "detected", detected, "lang", langs)
	final, err := p.recognize(ctx, img, langs)
	if err != nil {
		return Result{Detected: detected, Passes: 2}, err
	}
	return Result{Text: final, Languages: langs, Detected: detected, Passes: 2}, nil
}

func (p *Pipeline) recognize(ctx context.Context, img []byte, langs string) (string, error) {
	text, err := p.recognizer.Recognize(ctx, img, langs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOCRFailed, err)
	}
	return text, nil
}
