package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/johbar/ocr-language-service/internal/cache"
	"github.com/johbar/ocr-language-service/internal/config"
	"github.com/johbar/ocr-language-service/internal/pipeline"
)

// PrintTextToStdout runs the pipeline once on the image at path and prints the text.
// When path is "-", the image is read from Stdin. Returns the exit code.
func PrintTextToStdout(conf *config.Config, logger *slog.Logger, path, selector string) int {
	img, err := readImage(path)
	if err != nil {
		logger.Error("Could not read image", "path", path, "err", err)
		return 1
	}
	rec := NewRecognizer(conf, logger, &cache.NopCache{})
	defer rec.Close()
	p, err := NewPipeline(conf, logger, rec)
	if err != nil {
		logger.Error("Invalid language configuration", "err", err)
		return 1
	}
	sel, err := pipeline.ParseSelector(selector, tokens(conf), p.Mapping())
	if err != nil {
		logger.Error("Invalid language", "language", selector, "err", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.OcrTimeout*2)
	defer cancel()
	res, err := p.Run(ctx, img, sel)
	if err != nil {
		logger.Error("Could not process image", "path", path, "err", err)
		return 1
	}
	logger.Info("Recognized", "languages", res.Languages, "detected", res.Detected, "passes", res.Passes)
	fmt.Println(res.Text)
	return 0
}

func readImage(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
