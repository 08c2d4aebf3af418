// Package ocr is a client for an OCR.space-compatible text recognition API.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kctvfetch/internal/services"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultLanguage = "kor"
	defaultEngine   = "1"
)

// Config describes the recognition client configuration.
type Config struct {
	APIURL            string
	APIKey            string
	Language          string
	Engine            string
	Timeout           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// Client submits images for recognition.
type Client struct {
	endpoint string
	apiKey   string
	language string
	engine   string
	http     *http.Client
	limiter  *rate.Limiter
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.APIURL)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ocr", "init", "API URL is required", nil)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ocr", "init", "API key is required", nil)
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	engine := strings.TrimSpace(cfg.Engine)
	if engine == "" {
		engine = defaultEngine
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		language: language,
		engine:   engine,
		http:     client,
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

// Result is the classified response for one image.
type Result struct {
	ExitCode int
	Segments []string
	// Message carries the service's error text for unrecognised images.
	Message string
}

// Recognised reports whether the service parsed the image with at least one
// result (exit codes 1 and 2).
func (r Result) Recognised() bool {
	return r.ExitCode == 1 || r.ExitCode == 2
}

// ServiceError reports a failed exchange with the recognition service.
type ServiceError struct {
	Image      string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString("ocr ")
	b.WriteString(filepath.Base(e.Image))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is classifies service errors as external tool failures.
func (e *ServiceError) Is(target error) bool {
	return target == services.ErrExternalTool
}

type response struct {
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
	ParsedResults         []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
	} `json:"ParsedResults"`
}

// Recognize uploads one image and returns its classified result.
func (c *Client) Recognize(ctx context.Context, imagePath string) (Result, error) {
	if c == nil {
		return Result{}, errors.New("ocr: client is nil")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	body, contentType, err := c.buildForm(imagePath)
	if err != nil {
		return Result{}, &ServiceError{Image: imagePath, Message: "build request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return Result{}, &ServiceError{Image: imagePath, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &ServiceError{Image: imagePath, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &ServiceError{Image: imagePath, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, &ServiceError{Image: imagePath, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}

	result := Result{ExitCode: payload.OCRExitCode, Message: ErrorText(payload.ErrorMessage)}
	for _, parsed := range payload.ParsedResults {
		if text := strings.TrimSpace(parsed.ParsedText); text != "" {
			result.Segments = append(result.Segments, text)
		}
	}
	return result, nil
}

// ErrorText flattens the service's ErrorMessage field, which is either a
// string or an array of strings.
func ErrorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, "; ")
	}
	return string(raw)
}

func (c *Client) buildForm(imagePath string) (io.Reader, string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, field := range [][2]string{
		{"apikey", c.apiKey},
		{"language", c.language},
		{"OCREngine", c.engine},
	} {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
