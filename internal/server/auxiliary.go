package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/johbar/ocr-language-service/internal/feedback"
	"github.com/johbar/ocr-language-service/internal/geoip"
	"github.com/johbar/ocr-language-service/internal/txt2img"
)

type feedbackForm struct {
	Text string `form:"text" json:"text"`
}

// Submit relays the submitted text, together with the caller's location, to the feedback webhook.
// Redirects back to the referring page on success.
func (s *Server) Submit(c *gin.Context) {
	var form feedbackForm
	if err := c.ShouldBind(&form); err != nil || form.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text field is missing"})
		return
	}
	var details *geoip.Details
	if d, ok := geoip.FromContext(c); ok {
		details = &d
	}
	err := s.relay.Send(c.Request.Context(), feedback.Format(form.Text, details))
	if errors.Is(err, feedback.ErrDisabled) {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		s.log.Error("Error sending webhook", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	back := c.GetHeader("Referer")
	if back == "" {
		back = "/"
	}
	c.Redirect(http.StatusFound, back)
}

// Txt2Img forwards a prompt to the image generation API and returns the base64 encoded image.
func (s *Server) Txt2Img(c *gin.Context) {
	var req txt2img.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img, err := s.images.Generate(c.Request.Context(), req)
	if err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
			return
		}
		s.log.Error("Error generating image", "err", err)
		c.String(http.StatusInternalServerError, "Error generating image")
		return
	}
	c.String(http.StatusOK, img)
}
