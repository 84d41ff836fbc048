package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/johbar/ocr-language-service/internal/langcode"
	"github.com/johbar/ocr-language-service/internal/pipeline"
)

const (
	imageField    = "image"
	languageField = "language"
)

// Language describes a supported OCR language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// LanguagesResponse tells clients which selector values are accepted.
type LanguagesResponse struct {
	Languages   []Language `json:"languages"`
	Default     string     `json:"default"`
	DetectToken string     `json:"detect"`
	AllToken    string     `json:"all"`
	Threshold   int        `json:"threshold"`
}

// Ocr runs the pipeline on the uploaded image.
// Expects a multipart form with an `image` file and an optional `language` field.
func (s *Server) Ocr(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	img, err := readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, pipeline.ErrInputMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded."})
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large."})
		default:
			s.log.Warn("Could not read upload", "err", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload."})
		}
		return
	}
	language := c.PostForm(languageField)
	s.log.Info("Requested language", "language", language, "size", len(img), "mimetype", mimetype.Detect(img).String())

	sel, err := pipeline.ParseSelector(language, s.tokens, s.pipeline.Mapping())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.run(c.Request.Context(), img, sel)
	if err != nil {
		s.log.Error("OCR failed", "err", err, "selector", sel.String())
		if errors.Is(err, pipeline.ErrInputMissing) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded."})
			return
		}
		c.String(http.StatusInternalServerError, "Error processing image.")
		return
	}
	c.Header("X-Ocr-Language", res.Languages)
	c.JSON(http.StatusOK, gin.H{"ocrText": res.Text})
}

// run executes the pipeline and records its outcome.
func (s *Server) run(ctx context.Context, img []byte, sel pipeline.Selector) (pipeline.Result, error) {
	res, err := s.pipeline.Run(ctx, img, sel)
	if s.metrics != nil {
		s.metrics.ObserveRun(sel.Mode.String(), outcome(err), res.Passes)
	}
	return res, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pipeline.ErrInputMissing):
		return "input_missing"
	case errors.Is(err, pipeline.ErrOCRFailed):
		return "ocr_failed"
	}
	return "error"
}

func readUpload(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, pipeline.ErrInputMissing
		}
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, pipeline.ErrInputMissing
	}
	return img, nil
}

// Languages lists the supported languages and selector tokens.
func (s *Server) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, s.languageInfo())
}

func (s *Server) languageInfo() LanguagesResponse {
	mapping := s.pipeline.Mapping()
	codes := mapping.Set().Codes()
	langs := make([]Language, 0, len(codes))
	for _, code := range codes {
		langs = append(langs, Language{Code: code, Name: langcode.Name(code)})
	}
	return LanguagesResponse{
		Languages:   langs,
		Default:     mapping.Default(),
		DetectToken: s.tokens.Detect,
		AllToken:    s.tokens.All,
		Threshold:   s.pipeline.Threshold(),
	}
}
