package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Entry is a recognized text together with the key it is stored under.
type Entry struct {
	Key      string
	Text     string
	Metadata map[string]string
}

// Cache stores OCR results. A miss is reported as found == false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (text string, found bool, err error)
	Save(ctx context.Context, entry Entry) error
}

// Key identifies the result of recognizing img with langs.
func Key(img []byte, langs string) string {
	sum := sha256.Sum256(img)
	return hex.EncodeToString(sum[:]) + "/" + langs
}

type NopCache struct{}

func (c *NopCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (c *NopCache) Save(_ context.Context, _ Entry) error {
	return nil
}
