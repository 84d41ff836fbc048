package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Recognizer matches pipeline.Recognizer.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte, langs string) (string, error)
}

// CachingRecognizer serves repeated recognitions of the same image and languages from a Cache.
// Results are saved on a background goroutine; cache failures never fail a recognition.
type CachingRecognizer struct {
	next     Recognizer
	cache    Cache
	log      *slog.Logger
	saveChan chan Entry
	wg       sync.WaitGroup
	// mu guards closed against concurrent sends on saveChan
	mu     sync.RWMutex
	closed bool
}

func NewCachingRecognizer(next Recognizer, c Cache, logger *slog.Logger) *CachingRecognizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cr := &CachingRecognizer{
		next:     next,
		cache:    c,
		log:      logger,
		saveChan: make(chan Entry, 100),
	}
	cr.wg.Add(1)
	go cr.saveEntries()
	return cr
}

func (cr *CachingRecognizer) Recognize(ctx context.Context, img []byte, langs string) (string, error) {
	key := Key(img, langs)
	text, found, err := cr.cache.Get(ctx, key)
	if err != nil {
		cr.log.Warn("Could not read from cache", "key", key, "err", err)
	}
	if found {
		cr.log.Debug("Serving text from cache", "key", key)
		return text, nil
	}
	text, err = cr.next.Recognize(ctx, img, langs)
	if err != nil {
		return "", err
	}
	entry := Entry{
		Key:  key,
		Text: text,
		Metadata: map[string]string{
			"mimetype":  mimetype.Detect(img).String(),
			"languages": langs,
		},
	}
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if cr.closed {
		cr.log.Debug("Cache closed, not saving entry", "key", key)
		return text, nil
	}
	select {
	case cr.saveChan <- entry:
	default:
		cr.log.Warn("Cache save queue is full, dropping entry", "key", key)
	}
	return text, nil
}

func (cr *CachingRecognizer) saveEntries() {
	defer cr.wg.Done()
	for entry := range cr.saveChan {
		for i := 0; i <= 3; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := cr.cache.Save(ctx, entry)
			cancel()
			if err == nil {
				cr.log.Debug("Saved text in cache", "key", entry.Key, "size", len(entry.Text))
				break
			}
			cr.log.Warn("Could not save text to cache", "retries", i, "key", entry.Key, "err", err)
		}
	}
}

// Close stops accepting entries and waits until queued ones are saved.
// Recognitions finishing afterwards are still answered, just not cached.
func (cr *CachingRecognizer) Close() {
	cr.mu.Lock()
	if cr.closed {
		cr.mu.Unlock()
		return
	}
	cr.closed = true
	close(cr.saveChan)
	cr.mu.Unlock()
	cr.wg.Wait()
}
