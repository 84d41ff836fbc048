package main

import (
	"log/slog"

	"github.com/johbar/ocr-language-service/internal/cache"
	"github.com/johbar/ocr-language-service/internal/config"
	"github.com/johbar/ocr-language-service/internal/imageprep"
	"github.com/johbar/ocr-language-service/internal/langcode"
	"github.com/johbar/ocr-language-service/internal/langid"
	"github.com/johbar/ocr-language-service/internal/pipeline"
	"github.com/johbar/ocr-language-service/pkg/tesswrap"
)

// NewRecognizer stacks the Tesseract engine, optional preprocessing and the cache.
func NewRecognizer(conf *config.Config, logger *slog.Logger, c cache.Cache) *cache.CachingRecognizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	engine := tesswrap.New(conf.OcrTimeout, func(ev tesswrap.Event) {
		logger.Debug("Tesseract", "stage", ev.Stage, "progress", ev.Progress, "languages", ev.Languages, "elapsed", ev.Elapsed)
	})
	var rec cache.Recognizer = engine
	if conf.Preprocess {
		rec = &imageprep.GrayscaleRecognizer{Next: engine, Log: logger}
	}
	return cache.NewCachingRecognizer(rec, c, logger)
}

// NewPipeline builds the language configuration and the detection-aware pipeline.
func NewPipeline(conf *config.Config, logger *slog.Logger, rec pipeline.Recognizer) (*pipeline.Pipeline, error) {
	set, err := langcode.NewSet(conf.LanguageCodes()...)
	if err != nil {
		return nil, err
	}
	pairs, err := conf.LanguageMapPairs()
	if err != nil {
		return nil, err
	}
	mapping, err := langcode.NewMapping(set, pairs, conf.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	return pipeline.New(rec, langid.New(0, logger), mapping,
		pipeline.WithThreshold(conf.DetectThreshold),
		pipeline.WithLogger(logger)), nil
}

func tokens(conf *config.Config) pipeline.Tokens {
	return pipeline.Tokens{Detect: conf.DetectToken, All: conf.AllToken}
}
