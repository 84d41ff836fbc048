//go:build !embed_nats

package nats

import (
	"log/slog"

	"github.com/johbar/ocr-language-service/internal/config"
	"github.com/nats-io/nats.go"
)

const NatsEmbedded bool = false

func ConnectToEmbeddedNatsServer(_ config.Config, _ *slog.Logger) (*nats.Conn, error) {
	return nil, errNatsNotEmbedded
}
