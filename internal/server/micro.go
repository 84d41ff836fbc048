package server

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/johbar/ocr-language-service/internal/pipeline"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
)

const queueGroup = "ocr-language-service"

// RecognizeRequest is the payload of the `recognize` endpoint.
// Image is base64 encoded in JSON.
type RecognizeRequest struct {
	Language string `json:"language"`
	Image    []byte `json:"image"`
}

// RegisterNatsService exposes the pipeline as NATS micro service.
func (s *Server) RegisterNatsService(nc *nats.Conn) (micro.Service, error) {
	svc, err := micro.AddService(nc, micro.Config{
		Name:        "ocr",
		Version:     "1.0.0",
		Description: "Returns the text in images, optionally detecting their language",
	})
	if err != nil {
		return nil, err
	}
	err = svc.AddEndpoint("recognize",
		micro.HandlerFunc(s.handleRecognize),
		micro.WithEndpointQueueGroup(queueGroup))
	if err != nil {
		return nil, err
	}
	err = svc.AddEndpoint("languages",
		micro.HandlerFunc(s.handleLanguages),
		micro.WithEndpointQueueGroup(queueGroup))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// handleRecognize replies with the recognized text
func (s *Server) handleRecognize(req micro.Request) {
	var params RecognizeRequest
	if err := json.Unmarshal(req.Data(), &params); err != nil {
		req.Error("400", "invalid params: "+err.Error(), nil)
		return
	}
	s.log.Info("Received Nats request", "language", params.Language, "size", len(params.Image))
	sel, err := pipeline.ParseSelector(params.Language, s.tokens, s.pipeline.Mapping())
	if err != nil {
		req.Error("400", err.Error(), nil)
		return
	}
	res, err := s.run(context.Background(), params.Image, sel)
	if errors.Is(err, pipeline.ErrInputMissing) {
		req.Error("400", "no image supplied", nil)
		return
	}
	if err != nil {
		s.log.Error("OCR failed", "err", err, "selector", sel.String())
		req.Error("500", "Error processing image.", nil)
		return
	}
	req.Respond([]byte(res.Text), micro.WithHeaders(micro.Headers{"Ocr-Language": []string{res.Languages}}))
}

func (s *Server) handleLanguages(req micro.Request) {
	req.RespondJSON(s.languageInfo())
}
