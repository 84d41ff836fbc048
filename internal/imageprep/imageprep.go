// Package imageprep prepares uploaded images for OCR.
package imageprep

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Grayscale decodes img, honoring EXIF orientation, and re-encodes it as grayscale PNG.
func Grayscale(img []byte) ([]byte, error) {
	decoded, err := imaging.Decode(bytes.NewReader(img), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Grayscale(decoded), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding grayscale image: %w", err)
	}
	return buf.Bytes(), nil
}

// Recognizer matches pipeline.Recognizer.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte, langs string) (string, error)
}

// GrayscaleRecognizer converts images before handing them to the wrapped Recognizer.
// Images Go can't decode are passed on unchanged, leaving the verdict to the OCR engine.
type GrayscaleRecognizer struct {
	Next Recognizer
	Log  *slog.Logger
}

func (g *GrayscaleRecognizer) Recognize(ctx context.Context, img []byte, langs string) (string, error) {
	converted, err := Grayscale(img)
	if err != nil {
		if g.Log != nil {
			g.Log.Debug("Preprocessing skipped", "err", err)
		}
		return g.Next.Recognize(ctx, img, langs)
	}
	return g.Next.Recognize(ctx, converted, langs)
}
