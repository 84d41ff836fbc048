package nats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/johbar/ocr-language-service/internal/config"
)

func TestStoreDir(t *testing.T) {
	if got := storeDir(config.Config{NatsStoreDir: "/data/nats"}); got != "/data/nats" {
		t.Errorf("configured dir ignored: %s", got)
	}
	want := filepath.Join(os.TempDir(), "ocr-language-service", "nats")
	if got := storeDir(config.Config{}); got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestConnectNotConfigured(t *testing.T) {
	if NatsEmbedded {
		t.Skip("built with embedded NATS")
	}
	_, err := Connect(config.Config{}, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("want ErrNotConfigured, got %v", err)
	}
}
