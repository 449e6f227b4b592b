package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubeask/internal/httpx"
	"tubeask/internal/logging"
	"tubeask/internal/services"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com"
	defaultModel       = "gemini-2.5-flash"
	defaultFileWait    = 15 * time.Second
	activationInterval = time.Second
	mimeTextPlain      = "text/plain"
)

// answerPrompt grounds the model in the uploaded transcript. The question is
// embedded rather than sent as a separate turn.
const answerPrompt = "Based on the content of this video transcript, please answer the following question: %s\n\n" +
	"Provide a detailed and accurate answer based solely on the information in the transcript."

// Config captures the runtime settings required to talk to the Gemini API.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	FileWait time.Duration
}

// Document is a transcript prepared for upload. Title and Channel, when set,
// are serialized as header lines ahead of the transcript text so the model can
// see the video metadata.
type Document struct {
	DisplayName string
	Title       string
	Channel     string
	Text        string
}

func (d Document) payload() string {
	var b strings.Builder
	if title := strings.TrimSpace(d.Title); title != "" {
		b.WriteString("Title: ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	if channel := strings.TrimSpace(d.Channel); channel != "" {
		b.WriteString("Channel: ")
		b.WriteString(channel)
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(d.Text)
	return b.String()
}

// Handle addresses an uploaded transcript artifact.
type Handle struct {
	Name string
	URI  string
}

// IsZero reports whether the handle addresses nothing.
func (h Handle) IsZero() bool {
	return strings.TrimSpace(h.URI) == ""
}

// Citation points into the source material backing a span of the answer.
type Citation struct {
	StartIndex int
	EndIndex   int
	URI        string
	License    string
}

// Answer is the generated response plus any citations the model attached.
type Answer struct {
	Text      string
	Citations []Citation
}

// Client wraps the Gemini file upload and content generation APIs.
type Client struct {
	cfg     Config
	gateway *httpx.Gateway
	logger  *slog.Logger
	sleeper func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithGateway overrides the default HTTP gateway.
func WithGateway(gateway *httpx.Gateway) Option {
	return func(c *Client) {
		if gateway != nil {
			c.gateway = gateway
		}
	}
}

// WithLogger attaches a logger for upload and generation progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "gemini")
		}
	}
}

// WithSleeper overrides how activation-poll sleeps are performed (tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:   strings.TrimSpace(cfg.APIKey),
			BaseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:    strings.TrimSpace(cfg.Model),
			FileWait: cfg.FileWait,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.FileWait <= 0 {
		client.cfg.FileWait = defaultFileWait
	}
	if client.gateway == nil {
		client.gateway = httpx.New(httpx.WithLogger(client.logger))
	}
	return client
}

type fileEnvelope struct {
	File fileInfo `json:"file"`
}

type fileInfo struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MIMEType string `json:"mime_type"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback"`
}

type candidate struct {
	Content          candidateContent  `json:"content"`
	CitationMetadata *citationMetadata `json:"citationMetadata"`
}

type candidateContent struct {
	Parts []candidatePart `json:"parts"`
}

type candidatePart struct {
	Text string `json:"text"`
}

type citationMetadata struct {
	CitationSources []citationSource `json:"citationSources"`
}

type citationSource struct {
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	URI        string `json:"uri"`
	License    string `json:"license"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

// Upload registers the document with the file API and returns its handle.
// Files that come back in a non-ACTIVE state are polled briefly until they
// activate; a file the backend marks FAILED is an upload rejection.
func (c *Client) Upload(ctx context.Context, doc Document) (Handle, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return Handle{}, services.Wrap(services.ErrValidation, "", "upload transcript", "document text is empty", nil)
	}
	displayName := strings.TrimSpace(doc.DisplayName)
	if displayName == "" {
		displayName = "transcript.txt"
	}

	body, contentType, err := encodeMultipart(displayName, doc.payload())
	if err != nil {
		return Handle{}, fmt.Errorf("upload transcript: encode request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/upload/v1beta/files?key=" + url.QueryEscape(c.cfg.APIKey)
	resp, err := c.gateway.Do(ctx, "gemini upload", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Goog-Upload-Protocol", "multipart")
		return req, nil
	})
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			return Handle{}, services.Wrap(services.ErrUploadRejected, "", "upload transcript", "file api rejected the upload", err)
		}
		return Handle{}, err
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return Handle{}, fmt.Errorf("upload transcript: decode response: %w", err)
	}
	if envelope.File.URI == "" {
		return Handle{}, services.Wrap(services.ErrUploadRejected, "", "upload transcript", "response carried no file uri", nil)
	}

	handle := Handle{Name: envelope.File.Name, URI: envelope.File.URI}
	logging.WithContext(ctx, c.logger).Debug("transcript uploaded",
		logging.String("file", handle.Name),
		logging.String("state", envelope.File.State))

	if envelope.File.State != "ACTIVE" {
		if err := c.waitForActive(ctx, handle); err != nil {
			return Handle{}, err
		}
	}
	return handle, nil
}

// waitForActive polls the file until the backend reports it ACTIVE. The wait
// budget is cfg.FileWait; running out of budget is not fatal because
// generation may still succeed once the file settles.
func (c *Client) waitForActive(ctx context.Context, handle Handle) error {
	attempts := int(c.cfg.FileWait / activationInterval)
	if attempts < 1 {
		attempts = 1
	}
	endpoint := c.cfg.BaseURL + "/v1beta/" + handle.Name + "?key=" + url.QueryEscape(c.cfg.APIKey)

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.sleep(ctx, activationInterval); err != nil {
			return err
		}
		resp, err := c.gateway.Do(ctx, "gemini file state", func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		})
		if err != nil {
			return err
		}
		var info fileInfo
		if err := json.Unmarshal(resp.Body, &info); err != nil {
			return fmt.Errorf("upload transcript: decode file state: %w", err)
		}
		switch info.State {
		case "ACTIVE":
			return nil
		case "FAILED":
			return services.Wrap(services.ErrUploadRejected, "", "upload transcript", "file processing failed", nil)
		}
	}
	logging.WithContext(ctx, c.logger).Warn("file not active after wait budget",
		logging.String("file", handle.Name),
		logging.Duration("budget", c.cfg.FileWait))
	return nil
}

// Ask generates a grounded answer to the question using the uploaded
// transcripts. Every handle becomes a file part of the single user turn; the
// model must answer from those transcripts alone.
func (c *Client) Ask(ctx context.Context, question string, handles []Handle) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, services.Wrap(services.ErrValidation, "", "generate answer", "question is empty", nil)
	}
	usable := make([]Handle, 0, len(handles))
	for _, handle := range handles {
		if !handle.IsZero() {
			usable = append(usable, handle)
		}
	}
	if len(usable) == 0 {
		return nil, services.Wrap(services.ErrNoIndex, "", "generate answer", "no transcript artifacts to ground the answer", nil)
	}

	parts := make([]part, 0, len(usable)+1)
	parts = append(parts, part{Text: fmt.Sprintf(answerPrompt, question)})
	for _, handle := range usable {
		parts = append(parts, part{FileData: &fileData{FileURI: handle.URI, MIMEType: mimeTextPlain}})
	}
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: parts, Role: "user"}},
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: encode request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/v1beta/models/" + c.cfg.Model + ":generateContent?key=" + url.QueryEscape(c.cfg.APIKey)
	resp, err := c.gateway.Do(ctx, "gemini generate", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			return nil, services.Wrap(services.ErrGenerationFailed, "", "generate answer", "model request rejected", err)
		}
		return nil, err
	}

	var decoded generateResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("generate answer: decode response: %w", err)
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return nil, services.Wrap(services.ErrGenerationFailed, "", "generate answer",
			"prompt blocked: "+decoded.PromptFeedback.BlockReason, nil)
	}
	if len(decoded.Candidates) == 0 {
		return nil, services.Wrap(services.ErrGenerationFailed, "", "generate answer", "model returned no candidates", nil)
	}

	first := decoded.Candidates[0]
	var text strings.Builder
	for _, p := range first.Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, services.Wrap(services.ErrGenerationFailed, "", "generate answer", "model returned no answer text", nil)
	}

	answer := &Answer{Text: text.String()}
	if first.CitationMetadata != nil {
		for _, src := range first.CitationMetadata.CitationSources {
			answer.Citations = append(answer.Citations, Citation{
				StartIndex: src.StartIndex,
				EndIndex:   src.EndIndex,
				URI:        src.URI,
				License:    src.License,
			})
		}
	}
	logging.WithContext(ctx, c.logger).Debug("answer generated",
		logging.Int("characters", len(answer.Text)),
		logging.Int("citations", len(answer.Citations)))
	return answer, nil
}

func encodeMultipart(displayName, body string) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metadata, err := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": displayName},
	})
	if err != nil {
		return nil, "", err
	}
	metaPart, err := writer.CreateFormField("metadata")
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(metadata); err != nil {
		return nil, "", err
	}

	filePart, err := writer.CreateFormField("file")
	if err != nil {
		return nil, "", err
	}
	if _, err := filePart.Write([]byte(body)); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
