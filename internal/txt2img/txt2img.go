// Package txt2img forwards prompts to a Stable Diffusion compatible API.
package txt2img

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// ErrNoImage is returned when the API answers without any image
var ErrNoImage = errors.New("no image in response")

// Request holds the parameters forwarded to the API.
type Request struct {
	Prompt         string `json:"prompt" validate:"required,max=2000"`
	NegativePrompt string `json:"negative_prompt,omitempty" validate:"max=2000"`
	Steps          int    `json:"steps,omitempty" validate:"omitempty,min=1,max=150"`
	SamplerIndex   string `json:"sampler_index,omitempty" validate:"max=100"`
}

type response struct {
	Images []string `json:"images"`
}

type Client struct {
	url        string
	httpClient *http.Client
	validate   *validator.Validate
}

func New(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient, validate: validator.New()}
}

// Validate checks req before it is sent.
func (c *Client) Validate(req Request) error {
	return c.validate.Struct(req)
}

// Generate returns the first generated image, base64 encoded.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if err := c.Validate(req); err != nil {
		return "", err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling image generation API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("image generation API responded %s", resp.Status)
	}
	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding image generation response: %w", err)
	}
	if len(body.Images) == 0 {
		return "", ErrNoImage
	}
	return body.Images[0], nil
}
