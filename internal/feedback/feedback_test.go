package feedback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/johbar/ocr-language-service/internal/geoip"
)

func TestFormat(t *testing.T) {
	d := &geoip.Details{IP: "203.0.113.7", City: "Berlin", Region: "Land Berlin", Country: "Germany", Flag: "🇩🇪"}
	msg := Format("hello", d)
	for _, want := range []string{
		"👤 IP Address: 203||.0.113.7||",
		"🇩🇪 Country: Germany",
		"🏙️ City: ||Berlin||",
		"🗺️ Region: ||Land Berlin||",
		"Submitted Text: ```hello```",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message lacks %q:\n%s", want, msg)
		}
	}
}

func TestFormatWithoutDetails(t *testing.T) {
	msg := Format("hi", nil)
	if !strings.Contains(msg, "IP Address: unknown") || !strings.Contains(msg, "```hi```") {
		t.Errorf("unexpected message:\n%s", msg)
	}
}

func TestSend(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	relay := NewRelay(srv.URL, srv.Client(), nil)
	if err := relay.Send(context.Background(), "content"); err != nil {
		t.Fatal(err)
	}
	if got.Content != "content" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	relay := NewRelay(srv.URL, srv.Client(), nil)
	if err := relay.Send(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 3 {
		t.Errorf("want 3 attempts, got %d", hits.Load())
	}
}

func TestSendClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	relay := NewRelay(srv.URL, srv.Client(), nil)
	if err := relay.Send(context.Background(), "x"); err == nil {
		t.Error("expected an error")
	}
	if hits.Load() != 1 {
		t.Errorf("want 1 attempt, got %d", hits.Load())
	}
}

func TestSendDisabled(t *testing.T) {
	relay := NewRelay("", nil, nil)
	if err := relay.Send(context.Background(), "x"); !errors.Is(err, ErrDisabled) {
		t.Errorf("want ErrDisabled, got %v", err)
	}
}
