package nats

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/johbar/ocr-language-service/internal/config"
	"github.com/nats-io/nats.go"
)

var errNatsNotEmbedded = errors.New("NATS has not been embedded in this build")

// ErrNotConfigured is returned if neither an external NATS URL is set nor the server is embedded
var ErrNotConfigured = errors.New("NATS is not configured")

// Connect returns a connection to the external NATS server if a URL is configured,
// else to an embedded server if this build contains one.
func Connect(conf config.Config, log *slog.Logger) (*nats.Conn, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if conf.NatsUrl != "" {
		return SetupNatsConnection(conf, log)
	}
	if NatsEmbedded {
		return ConnectToEmbeddedNatsServer(conf, log)
	}
	return nil, ErrNotConfigured
}

// SetupNatsConnection connects the service to an external NATS server.
func SetupNatsConnection(conf config.Config, log *slog.Logger) (*nats.Conn, error) {
	var attempts int = 0

	log.Info("Try connecting to NATS", "url", conf.NatsUrl, "timeoutSecs", conf.NatsTimeout.Seconds())
	for {
		attempts++
		nc, err := nats.Connect(conf.NatsUrl, nats.Name("ocr-language-service"), nats.Timeout(conf.NatsTimeout))
		if err == nil {
			return nc, nil
		}
		log.Error("Connecting to NATS failed",
			"url", conf.NatsUrl,
			"timeoutSecs", conf.NatsTimeout.Seconds(),
			"err", err,
			"count", attempts,
			"maxRetries", conf.NatsConnectRetries)
		if attempts > conf.NatsConnectRetries {
			log.Error("Connecting to NATS failed. Retry count exceeded", "err", err, "maxRetries", conf.NatsConnectRetries)
			return nil, err
		}
		time.Sleep(time.Second)
	}
}

// storeDir is where an embedded server keeps JetStream data.
func storeDir(conf config.Config) string {
	if conf.NatsStoreDir != "" {
		return conf.NatsStoreDir
	}
	return filepath.Join(os.TempDir(), "ocr-language-service", "nats")
}
