package server

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/johbar/ocr-language-service/internal/feedback"
	"github.com/johbar/ocr-language-service/internal/geoip"
	"github.com/johbar/ocr-language-service/internal/langcode"
	"github.com/johbar/ocr-language-service/internal/metrics"
	"github.com/johbar/ocr-language-service/internal/pipeline"
	"github.com/johbar/ocr-language-service/internal/txt2img"
)

type fakeRecognizer struct {
	mu    sync.Mutex
	langs []string
	text  func(langs string) string
	err   error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ []byte, langs string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.langs = append(f.langs, langs)
	if f.err != nil {
		return "", f.err
	}
	return f.text(langs), nil
}

type fixedIdentifier string

func (id fixedIdentifier) Identify(string, []string) string { return string(id) }

func newPipeline(t *testing.T, rec pipeline.Recognizer, id pipeline.Identifier) *pipeline.Pipeline {
	t.Helper()
	set, err := langcode.NewSet("eng", "deu", "chi_sim")
	if err != nil {
		t.Fatal(err)
	}
	m, err := langcode.NewMapping(set, map[string]string{"cmn": "chi_sim", "und": "eng"}, "eng")
	if err != nil {
		t.Fatal(err)
	}
	return pipeline.New(rec, id, m)
}

func newTestServer(t *testing.T, rec pipeline.Recognizer, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return New(newPipeline(t, rec, fixedIdentifier("cmn")), opts, nil).Router()
}

func uploadRequest(t *testing.T, img []byte, language string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		fw, err := mw.CreateFormFile(imageField, "scan.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(img)
	}
	if language != "" {
		mw.WriteField(languageField, language)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/ocr", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeText(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		OcrText string `json:"ocrText"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response %q: %v", w.Body.String(), err)
	}
	return resp.OcrText
}

func TestOcrExplicit(t *testing.T) {
	rec := &fakeRecognizer{text: func(langs string) string { return "receipt in " + langs }}
	router := newTestServer(t, rec, Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, []byte("img"), "eng"))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeText(t, w); got != "receipt in eng" {
		t.Errorf("unexpected text %q", got)
	}
	if len(rec.langs) != 1 || rec.langs[0] != "eng" {
		t.Errorf("unexpected engine calls %v", rec.langs)
	}
	if w.Header().Get("X-Ocr-Language") != "eng" {
		t.Errorf("unexpected language header %q", w.Header().Get("X-Ocr-Language"))
	}
	if w.Header().Get(requestIdHeader) == "" {
		t.Error("expected a request id")
	}
}

func TestOcrDefaultLanguage(t *testing.T) {
	rec := &fakeRecognizer{text: func(string) string { return "x" }}
	router := newTestServer(t, rec, Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, []byte("img"), ""))
	if w.Code != http.StatusOK || rec.langs[0] != "eng" {
		t.Errorf("want default language, got %d %v", w.Code, rec.langs)
	}
}

func TestOcrDetect(t *testing.T) {
	long := strings.Repeat("字", 60)
	rec := &fakeRecognizer{text: func(langs string) string {
		if langs == "chi_sim" {
			return "final"
		}
		return long
	}}
	m := metrics.New()
	router := newTestServer(t, rec, Options{Metrics: m})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, []byte("img"), "detect"))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if got := decodeText(t, w); got != "final" {
		t.Errorf("unexpected text %q", got)
	}
	if len(rec.langs) != 2 || rec.langs[0] != "eng+deu+chi_sim" || rec.langs[1] != "chi_sim" {
		t.Errorf("unexpected engine calls %v", rec.langs)
	}
}

func TestOcrDetectShortText(t *testing.T) {
	rec := &fakeRecognizer{text: func(string) string { return "short" }}
	router := newTestServer(t, rec, Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, []byte("img"), "detect"))
	if got := decodeText(t, w); got != "short" || len(rec.langs) != 1 {
		t.Errorf("unexpected %q after %v", got, rec.langs)
	}
}

func TestOcrMissingImage(t *testing.T) {
	rec := &fakeRecognizer{text: func(string) string { return "x" }}
	router := newTestServer(t, rec, Options{})
	for name, req := range map[string]*http.Request{
		"no file":       uploadRequest(t, nil, "eng"),
		"empty file":    uploadRequest(t, []byte{}, "eng"),
		"not multipart": httptest.NewRequest(http.MethodPost, "/ocr", strings.NewReader("language=eng")),
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "No file uploaded.") {
			t.Errorf("%s: want 400 No file uploaded, got %d %s", name, w.Code, w.Body.String())
		}
	}
	if len(rec.langs) != 0 {
		t.Error("engine must not run without an image")
	}
}

func TestOcrFailure(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("engine crashed")}
	router := newTestServer(t, rec, Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, []byte("img"), "detect"))
	if w.Code != http.StatusInternalServerError || w.Body.String() != "Error processing image." {
		t.Errorf("want 500, got %d %q", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "crashed") {
		t.Error("internal error details must not be exposed")
	}
}

func TestOcrUnsupportedLanguage(t *testing.T) {
	rec := &fakeRecognizer{text: func(string) string { return "x" }}
	router := newTestServer(t, rec, Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, []byte("img"), "jpn"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("want 400, got %d", w.Code)
	}
	if len(rec.langs) != 0 {
		t.Error("engine must not run for unsupported languages")
	}
}

func TestLanguages(t *testing.T) {
	router := newTestServer(t, &fakeRecognizer{}, Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/languages", nil))
	var resp LanguagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Languages) != 3 || resp.Languages[1].Code != "deu" || resp.Languages[1].Name != "German" {
		t.Errorf("unexpected languages %+v", resp.Languages)
	}
	if resp.Default != "eng" || resp.DetectToken != "detect" || resp.AllToken != "all" || resp.Threshold != 50 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestServer(t, &fakeRecognizer{}, Options{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("unexpected %d %q", w.Code, w.Body.String())
	}
}

func TestSubmit(t *testing.T) {
	var content string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&msg)
		content = msg.Content
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","query":"203.0.113.7","city":"Paris","regionName":"Île-de-France","country":"France","countryCode":"FR"}`))
	}))
	defer geo.Close()

	router := newTestServer(t, &fakeRecognizer{}, Options{
		Relay: feedback.NewRelay(hook.URL, hook.Client(), nil),
		Geo:   geoip.New(geo.URL+"/", geo.Client(), time.Minute, nil),
	})

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("text=great+service"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "/index.html")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/index.html" {
		t.Fatalf("want redirect back, got %d %v", w.Code, w.Header())
	}
	if !strings.Contains(content, "```great service```") || !strings.Contains(content, "🇫🇷 Country: France") {
		t.Errorf("unexpected webhook content:\n%s", content)
	}

	req = httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"text":""}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("want 400 for missing text, got %d", w.Code)
	}
}

func TestSubmitDisabled(t *testing.T) {
	router := newTestServer(t, &fakeRecognizer{}, Options{Relay: feedback.NewRelay("", nil, nil)})
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("want 503, got %d", w.Code)
	}
}

func TestTxt2Img(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"images":["iVBORw0KGgo="]}`))
	}))
	defer api.Close()
	router := newTestServer(t, &fakeRecognizer{}, Options{Images: txt2img.New(api.URL, api.Client())})

	req := httptest.NewRequest(http.MethodPost, "/txt2img", strings.NewReader(`{"prompt":"a lighthouse","steps":20}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "iVBORw0KGgo=" {
		t.Errorf("unexpected %d %q", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/txt2img", strings.NewReader(`{"steps":20}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("want 400 without prompt, got %d", w.Code)
	}
}

func TestOptionalRoutesDisabled(t *testing.T) {
	router := newTestServer(t, &fakeRecognizer{}, Options{})
	for _, path := range []string{"/submit", "/txt2img"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: want 404, got %d", path, w.Code)
		}
	}
}
