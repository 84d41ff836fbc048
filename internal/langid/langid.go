// Package langid guesses the natural language of a text sample.
package langid

import (
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

// Undetermined is returned whenever no whitelisted language can be told apart.
const Undetermined = "und"

// Identifier wraps whatlanggo. Codes are ISO 639-3, e.g. `deu`, `cmn`.
// It is safe for concurrent use.
type Identifier struct {
	byCode map[string]whatlanggo.Lang
	// MinConfidence rejects guesses below this value (0..1). Zero accepts any guess
	MinConfidence float64
	log           *slog.Logger
}

func New(minConfidence float64, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	byCode := make(map[string]whatlanggo.Lang, len(whatlanggo.Langs))
	for lang := range whatlanggo.Langs {
		if code := lang.Iso6393(); code != "" {
			byCode[code] = lang
		}
	}
	return &Identifier{byCode: byCode, MinConfidence: minConfidence, log: logger}
}

// Knows reports whether the identifier is able to emit code.
func (id *Identifier) Knows(code string) bool {
	_, ok := id.byCode[code]
	return ok
}

// Identify returns the ISO 639-3 code of the most likely language among whitelist,
// or Undetermined. Whitelisted codes unknown to the library are ignored;
// an empty whitelist allows every language.
func (id *Identifier) Identify(text string, whitelist []string) (code string) {
	defer func() {
		if r := recover(); r != nil {
			id.log.Error("Language identification panicked", "err", r)
			code = Undetermined
		}
	}()
	opts := whatlanggo.Options{}
	allowed := make(map[string]bool, len(whitelist))
	if len(whitelist) > 0 {
		opts.Whitelist = make(map[whatlanggo.Lang]bool, len(whitelist))
		for _, c := range whitelist {
			if lang, ok := id.byCode[c]; ok {
				opts.Whitelist[lang] = true
				allowed[c] = true
			}
		}
		if len(opts.Whitelist) == 0 {
			return Undetermined
		}
	}
	info := whatlanggo.DetectWithOptions(text, opts)
	if info.Script == nil || info.Lang < 0 {
		return Undetermined
	}
	code = info.Lang.Iso6393()
	if code == "" || (len(allowed) > 0 && !allowed[code]) {
		return Undetermined
	}
	if info.Confidence < id.MinConfidence {
		id.log.Debug("Language guess below confidence threshold", "lang", code, "confidence", info.Confidence)
		return Undetermined
	}
	return code
}
