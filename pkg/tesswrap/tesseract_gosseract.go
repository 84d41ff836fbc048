//go:build gosseract

package tesswrap

import (
	"context"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	Version = gosseract.Version()
	Initialized = true
}

func recognize(ctx context.Context, img []byte, langs string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	goss := gosseract.NewClient()
	defer goss.Close()

	goss.DisableOutput()
	if err := goss.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", err
	}
	if err := goss.SetLanguage(langs); err != nil {
		return "", err
	}
	if err := goss.SetImageFromBytes(img); err != nil {
		return "", err
	}
	// the cgo call can't be interrupted, so a cancellation is only noticed afterwards
	txt, err := goss.Text()
	if err != nil {
		return "", err
	}
	return txt, ctx.Err()
}
