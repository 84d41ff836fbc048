package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go-simpler.org/env"
)

// Config represents the configuration of this service
type Config struct {
	// HTTP listen address and/or port. Default: ':3000'
	SrvAddr string `env:"OCR_HOST_PORT" default:":3000"`
	// Log level (DEBUG, INFO, WARN, ERROR)
	LogLevelStr string `env:"OCR_LOG_LEVEL" default:"INFO"`
	LogLevel    slog.Level
	// Maximum size of an uploaded image
	MaxUploadSize      string `env:"OCR_MAX_UPLOAD_SIZE" default:"20MiB"`
	MaxUploadSizeBytes uint64

	// Tesseract language codes, separated by `+`, the service is able to recognize.
	// NOTE: The languages need to be installed.
	Languages string `env:"OCR_LANGUAGES" default:"eng+fra+deu+rus+spa+ita+pol+ukr+chi_sim"`
	// Language used when detection is inconclusive or no language was requested
	DefaultLanguage string `env:"OCR_DEFAULT_LANGUAGE" default:"eng"`
	// Identifier code to Tesseract code, comma separated pairs like `cmn:chi_sim`
	LanguageMap string `env:"OCR_LANGUAGE_MAP" default:"chi:chi_sim,zho:chi_sim,cmn:chi_sim,und:eng"`
	// Minimum length of the first pass text needed to run language detection
	DetectThreshold int `env:"OCR_DETECT_THRESHOLD" default:"50"`
	// Selector value requesting auto detection
	DetectToken string `env:"OCR_DETECT_TOKEN" default:"detect"`
	// Selector value requesting all supported languages at once
	AllToken string `env:"OCR_ALL_TOKEN" default:"all"`
	// Upper bound for a single Tesseract run
	OcrTimeout time.Duration `env:"OCR_TIMEOUT" default:"2m"`
	// Convert uploads to grayscale PNG before recognition
	Preprocess bool `env:"OCR_PREPROCESS" default:"false"`

	// Base URL of the geolocation API; the client IP gets appended
	GeoIpUrl string `env:"OCR_GEOIP_URL" default:"http://ip-api.com/json/"`
	// Chat webhook receiving feedback. Feedback is disabled if empty
	FeedbackWebhookUrl string `env:"OCR_FEEDBACK_WEBHOOK_URL"`
	// Remote text to image endpoint
	Txt2ImgUrl string `env:"OCR_TXT2IMG_URL" default:"https://kaizencloud.net/generate/sdapi/v1/txt2img"`
	// Timeout for outgoing HTTP requests
	HttpClientTimeout time.Duration `env:"OCR_HTTP_CLIENT_TIMEOUT" default:"30s"`

	// Name of the object store bucket in NATS caching OCR results
	Bucket string `env:"OCR_BUCKET" default:"OCR_TEXTS"`
	// How many replicas of the bucket to create. Default: 1
	Replicas int `env:"OCR_REPLICAS" default:"1"`
	// If true the service will exit with an error if NATS or JetStream can't be connected
	FailWithoutJetstream bool `env:"OCR_FAIL_WITHOUT_JS" default:"false"`
	// External NATS URL, e.g. nats://localhost:4222
	NatsUrl string `env:"OCR_NATS_URL"`
	// Timeout for the external NATS connection
	NatsTimeout time.Duration `env:"OCR_NATS_TIMEOUT" default:"15s"`
	// NatsConnectRetries is the number of attempts to connect to external NATS server(s)
	NatsConnectRetries int `env:"OCR_NATS_CONNECT_RETRIES" default:"10"`
	// wether to expose embedded NATS server to other clients. Default: false
	ExposeNats bool `env:"OCR_EXPOSE_NATS" default:"false"`
	// NATS max msg size (embedded server only)
	NatsMaxPayload int32 `env:"OCR_MAX_PAYLOAD" default:"8388608"`
	// embedded NATS server storage location
	NatsStoreDir string `env:"OCR_NATS_STORE_DIR"`
	// embedded NATS server host/ip address, if exposed. Default: localhost
	NatsHost string `env:"OCR_NATS_HOST" default:"localhost"`
	// embedded NATS server port, if exposed. Default: 4222
	NatsPort int `env:"OCR_NATS_PORT" default:"4222"`
}

// NewConfigFromEnv returns a service config object
// populated with defaults and values from environment vars
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, err
	}
	err := cfg.LogLevel.UnmarshalText([]byte(cfg.LogLevelStr))
	if err != nil {
		return nil, fmt.Errorf("parsing log level from env: %w", err)
	}
	maxSize, err := humanize.ParseBytes(cfg.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("parsing max upload size from env: %w", err)
	}
	cfg.MaxUploadSizeBytes = maxSize
	if cfg.DetectThreshold < 0 {
		return nil, errors.New("detect threshold must not be negative")
	}
	if cfg.DetectToken == cfg.AllToken {
		return nil, fmt.Errorf("detect token and all token must differ, both are %q", cfg.DetectToken)
	}
	return &cfg, nil
}

// LanguageCodes splits the configured `+`-joined language list.
func (c *Config) LanguageCodes() []string {
	var codes []string
	for _, code := range strings.Split(c.Languages, "+") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// LanguageMapPairs parses the configured identifier-to-Tesseract mapping.
func (c *Config) LanguageMapPairs() (map[string]string, error) {
	pairs := make(map[string]string)
	for _, entry := range strings.Split(c.LanguageMap, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		from, to, ok := strings.Cut(entry, ":")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid language map entry %q, want <from>:<to>", entry)
		}
		pairs[from] = to
	}
	return pairs, nil
}
