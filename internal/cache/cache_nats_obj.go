package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/johbar/ocr-language-service/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type ObjectStoreCache struct {
	jetstream.ObjectStore
	nc *nats.Conn
	js jetstream.JetStream
}

func New(conf config.Config, log *slog.Logger, nc *nats.Conn) (*ObjectStoreCache, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if nc == nil {
		return nil, errors.New("no connection to NATS")
	}
	js, err := setupJetstream(conf, nc, log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Storage:     jetstream.FileStorage,
		Bucket:      conf.Bucket,
		Description: "OCR results keyed by image hash and languages",
		Compression: true,
		Replicas:    conf.Replicas,
	})
	if err != nil {
		log.Error("Creating NATS object store failed", "err", err)
		return nil, fmt.Errorf("initializing NATS object store: %w", err)
	}
	log.Info("NATS object store initialized.", "bucket", conf.Bucket)
	return &ObjectStoreCache{store, nc, js}, nil
}

func setupJetstream(conf config.Config, nc *nats.Conn, log *slog.Logger) (jetstream.JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		log.Error("Error when initializing NATS JetStream", "err", err.Error())
		return nil, err
	}

	for attempts := 0; attempts <= conf.NatsConnectRetries; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		_, err = js.AccountInfo(ctx)
		cancel()
		if err == nil {
			return js, nil
		}
		if errors.Is(err, jetstream.ErrJetStreamNotEnabled) || errors.Is(err, jetstream.ErrJetStreamNotEnabledForAccount) {
			return nil, err
		}
		log.Error("NATS JetStream check failed. Is JetStream enabled in external NATS server(s)?",
			"err", err,
			"count", attempts,
			"maxRetries", conf.NatsConnectRetries)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("retry count exceeded: %w", err)
}

func (store *ObjectStoreCache) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := store.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("retrieving object %s from object store: %w", key, err)
	}
	return string(data), true, nil
}

func (store *ObjectStoreCache) Save(ctx context.Context, entry Entry) error {
	m := jetstream.ObjectMeta{Name: entry.Key, Metadata: entry.Metadata}
	_, err := store.Put(ctx, m, strings.NewReader(entry.Text))
	return err
}
