// Package geoip enriches requests with the caller's approximate location.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	gocache "github.com/patrickmn/go-cache"
)

// ContextKey is the gin context key the Middleware stores Details under
const ContextKey = "geoip.details"

// Details describes where a client IP is located.
type Details struct {
	IP          string `json:"ip"`
	City        string `json:"city"`
	Region      string `json:"region"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Flag        string `json:"flag"`
}

type apiResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Query       string `json:"query"`
	City        string `json:"city"`
	RegionName  string `json:"regionName"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// Client queries an ip-api.com compatible service and caches the answers.
type Client struct {
	baseUrl    string
	httpClient *http.Client
	cache      *gocache.Cache
	log        *slog.Logger
}

func New(baseUrl string, httpClient *http.Client, ttl time.Duration, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseUrl:    baseUrl,
		httpClient: httpClient,
		cache:      gocache.New(ttl, 2*ttl),
		log:        logger,
	}
}

// Lookup returns the location of ip.
func (c *Client) Lookup(ctx context.Context, ip string) (Details, error) {
	if ip == "" {
		return Details{}, errors.New("no ip address")
	}
	if cached, ok := c.cache.Get(ip); ok {
		return cached.(Details), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+url.PathEscape(ip), nil)
	if err != nil {
		return Details{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Details{}, fmt.Errorf("fetching ip details: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Details{}, fmt.Errorf("fetching ip details: %s", resp.Status)
	}
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Details{}, fmt.Errorf("decoding ip details: %w", err)
	}
	if body.Status == "fail" {
		return Details{}, fmt.Errorf("ip lookup for %s failed: %s", ip, body.Message)
	}
	d := Details{
		IP:          body.Query,
		City:        body.City,
		Region:      body.RegionName,
		Country:     body.Country,
		CountryCode: body.CountryCode,
		Flag:        Flag(body.CountryCode),
	}
	if d.IP == "" {
		d.IP = ip
	}
	c.cache.SetDefault(ip, d)
	return d, nil
}

// Flag turns a two letter country code into its emoji flag, e.g. "DE" into 🇩🇪.
// Anything else yields an empty string.
func Flag(countryCode string) string {
	code := strings.ToUpper(countryCode)
	if len(code) != 2 {
		return ""
	}
	var sb strings.Builder
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
		// regional indicator symbols start at U+1F1E6
		sb.WriteRune(r - 'A' + 0x1F1E6)
	}
	return sb.String()
}

// ClientIP prefers the first X-Forwarded-For entry over the peer address.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return c.ClientIP()
}

// Middleware looks up the caller and stores the Details in the gin context.
// Lookup failures are logged and the request proceeds without details.
func (c *Client) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ip := ClientIP(ctx)
		d, err := c.Lookup(ctx.Request.Context(), ip)
		if err != nil {
			c.log.Error("Error fetching IP details", "ip", ip, "err", err)
			ctx.Next()
			return
		}
		ctx.Set(ContextKey, d)
		ctx.Next()
	}
}

// FromContext returns the Details stored by the Middleware.
func FromContext(c *gin.Context) (Details, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return Details{}, false
	}
	d, ok := v.(Details)
	return d, ok
}
