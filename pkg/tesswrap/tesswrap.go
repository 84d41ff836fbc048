/*
Package tesswrap is a rather limited wrapper for Tesseract OCR v5.
It defaults to using the CLI.
The gosseract client can be used instead by supplying the build tag `gosseract`.

Languages are passed per call in Tesseract's notation: a single code like `eng`
or several codes joined by `+`, e.g. `eng+deu`, to use the combined models.
*/
package tesswrap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// Initialized indicates if this package is usable
	Initialized bool = true
	Version     string
	// LangsAvailable lists the installed traineddata models
	LangsAvailable []string
)

// ErrNotInitialized is returned when Tesseract could not be found or loaded
var ErrNotInitialized = errors.New("tesseract is not available")

// Stages reported to an Observer
const (
	StageStarted  = "started"
	StageFinished = "finished"
)

// Event describes the progress of a single recognition.
type Event struct {
	Stage     string
	Progress  float64
	Languages string
	Elapsed   time.Duration
}

// Observer gets notified about progress. It must not block.
type Observer func(Event)

// Engine runs Tesseract on in-memory images.
// It is safe for concurrent use.
type Engine struct {
	// Timeout bounds every recognition. Zero means no limit
	Timeout  time.Duration
	Observer Observer
}

func New(timeout time.Duration, observer Observer) *Engine {
	return &Engine{Timeout: timeout, Observer: observer}
}

// Recognize returns the text Tesseract finds in img using the models in langs.
func (e *Engine) Recognize(ctx context.Context, img []byte, langs string) (string, error) {
	if !Initialized {
		return "", ErrNotInitialized
	}
	if len(img) == 0 {
		return "", errors.New("image is empty")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	start := time.Now()
	e.notify(Event{Stage: StageStarted, Languages: langs})
	text, err := recognize(ctx, img, langs)
	if err != nil {
		return "", fmt.Errorf("tesseract with languages %s: %w", langs, err)
	}
	e.notify(Event{Stage: StageFinished, Progress: 1, Languages: langs, Elapsed: time.Since(start)})
	return text, nil
}

func (e *Engine) notify(ev Event) {
	if e.Observer != nil {
		e.Observer(ev)
	}
}

// CheckLanguages returns true and an empty string if Tesseract is usable
// and all codes have trained data models installed.
// If not, false and a reason phrase reporting the first missing language are returned.
func CheckLanguages(codes []string) (ok bool, reason string) {
	if !Initialized {
		return false, "tesseract is not installed"
	}
	if LangsAvailable == nil {
		// backend can't list its models
		return true, ""
	}
	for _, code := range codes {
		if !slices.Contains(LangsAvailable, code) {
			return false, fmt.Sprintf("'%s' is not among the installed languages %v", code, LangsAvailable)
		}
	}
	return true, ""
}
