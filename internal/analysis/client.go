package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/brokeshot/internal/models"
)

const (
	DefaultEndpoint = "http://localhost:8000/analyze"

	uploadField       = "file"
	uploadFilename    = "shot.mp4"
	uploadContentType = "video/mp4"
	apiKeyHeader      = "X-API-KEY"
)

type Config struct {
	Endpoint string
	APIKey   string
	// Timeout of zero leaves the platform default in place.
	Timeout        time.Duration
	MaxUploadBytes int64
}

// Client talks to the remote jumpshot analysis service. Each Submit issues
// exactly one POST and never retries.
type Client struct {
	endpoint       string
	apiKey         string
	maxUploadBytes int64
	httpClient     *http.Client
}

// NewClient builds a client. A nil httpClient gets a fresh http.Client
// honouring cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		endpoint:       cfg.Endpoint,
		apiKey:         cfg.APIKey,
		maxUploadBytes: cfg.MaxUploadBytes,
		httpClient:     httpClient,
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit uploads the video and returns the decoded analysis. Every failure
// is a *ServiceError.
func (c *Client) Submit(ctx context.Context, video models.VideoReference) (*models.AnalysisResult, error) {
	body, contentType, err := encodeVideo(video, c.maxUploadBytes)
	if err != nil {
		return nil, newError(KindEncoding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, newError(KindTransport, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	log.Debug().
		Str("endpoint", c.endpoint).
		Str("video", video.Path).
		Int("bytes", body.Len()).
		Msg("Submitting shot for analysis")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, protocolErrorf(resp.StatusCode, "analysis service returned %d: %s", resp.StatusCode, errorDetail(data))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ServiceError{Kind: KindNoData, StatusCode: resp.StatusCode, Err: ErrNoData}
	}

	result, err := decodeResponse(data)
	if err != nil {
		return nil, &ServiceError{Kind: KindProtocol, StatusCode: resp.StatusCode, Err: err}
	}

	log.Debug().
		Int("score", result.OverallScore).
		Str("server_timestamp", result.ServerTimestamp).
		Msg("Analysis received")

	return result, nil
}

// Health is the analysis server's /health payload.
type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
}

// Health queries the /health route that sits next to the analyze endpoint.
// Failures are ServiceErrors like those of Submit.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	u.Path = path.Join(path.Dir(u.Path), "health")
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, protocolErrorf(resp.StatusCode, "health check returned %d: %s", resp.StatusCode, errorDetail(body))
	}

	var health Health
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, protocolErrorf(resp.StatusCode, "failed to unmarshal response: %w", err)
	}
	return &health, nil
}

// encodeVideo builds the single-part multipart body. The boundary is a
// random UUID.
func encodeVideo(video models.VideoReference, maxBytes int64) (*bytes.Buffer, string, error) {
	file, err := os.Open(video.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open video: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.SetBoundary(uuid.New().String()); err != nil {
		return nil, "", fmt.Errorf("failed to set boundary: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, uploadFilename))
	header.Set("Content-Type", uploadContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}

	var src io.Reader = file
	if maxBytes > 0 {
		src = io.LimitReader(file, maxBytes+1)
	}
	n, err := io.Copy(part, src)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read video: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, "", fmt.Errorf("%w (%d MB)", ErrVideoTooLarge, maxBytes/(1024*1024))
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
