//go:build embed_nats

package nats

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/johbar/ocr-language-service/internal/config"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const NatsEmbedded bool = true

// ConnectToEmbeddedNatsServer starts a JetStream enabled server in this process.
// Without OCR_NATS_STORE_DIR the OCR texts are kept below the system temp dir.
func ConnectToEmbeddedNatsServer(conf config.Config, log *slog.Logger) (*nats.Conn, error) {
	opts := &server.Options{
		ServerName: "ocr-language-service",
		JetStream:  true,
		MaxPayload: conf.NatsMaxPayload,
		DontListen: !conf.ExposeNats,
		Host:       conf.NatsHost,
		Port:       conf.NatsPort,
		StoreDir:   storeDir(conf),
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating embedded NATS server: %w", err)
	}
	if conf.LogLevel <= slog.LevelDebug {
		ns.ConfigureLogger()
	}
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server not ready after 5s")
	}
	if conf.ExposeNats {
		log.Info("Embedded NATS server exposed", "url", ns.ClientURL(), "storeDir", opts.StoreDir)
	} else {
		log.Info("Embedded NATS server started", "storeDir", opts.StoreDir)
	}
	return nats.Connect("", nats.InProcessServer(ns), nats.Name("ocr-language-service"))
}
