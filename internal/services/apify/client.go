package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubeask/internal/httpx"
	"tubeask/internal/logging"
	"tubeask/internal/services"
	"tubeask/internal/textutil"
	"tubeask/internal/videoref"
)

const (
	defaultBaseURL      = "https://api.apify.com/v2"
	defaultPollInterval = 5 * time.Second
	defaultPollMaxWait  = 5 * time.Minute
)

// Config captures the runtime settings required to talk to the Apify API.
type Config struct {
	APIKey  string
	BaseURL string
	ActorID string
}

// PollPolicy bounds how long AwaitCompletion watches a run.
type PollPolicy struct {
	Interval time.Duration
	MaxWait  time.Duration
}

func (p PollPolicy) normalized() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = defaultPollInterval
	}
	if p.MaxWait <= 0 {
		p.MaxWait = defaultPollMaxWait
	}
	return p
}

// Client runs transcript-extraction jobs against an Apify actor.
type Client struct {
	cfg     Config
	gateway *httpx.Gateway
	logger  *slog.Logger
	sleeper func(time.Duration)
	now     func() time.Time
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

// WithLogger attaches a logger for poll progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "apify")
		}
	}
}

// WithSleeper overrides how poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithClock overrides the time source used for the poll deadline (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs an Apify client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			ActorID: strings.TrimSpace(cfg.ActorID),
		},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.gateway == nil {
		client.gateway = httpx.New(httpx.WithLogger(client.logger))
	}
	return client
}

type runInput struct {
	StartURLs  []startURL `json:"startUrls"`
	MaxResults int        `json:"maxResults"`
}

type startURL struct {
	URL string `json:"url"`
}

type runEnvelope struct {
	Data runState `json:"data"`
}

type runState struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type datasetItem struct {
	Text        string `json:"text"`
	ChannelName string `json:"channelName"`
	Title       string `json:"title"`
}

// Submit starts an actor run for the referenced video and returns the tracked
// job. The actor rejecting the request maps to a submission failure; transport
// exhaustion keeps the gateway's classification.
func (c *Client) Submit(ctx context.Context, ref videoref.Ref) (*Job, error) {
	if ref.IsZero() {
		return nil, services.Wrap(services.ErrInvalidReference, "", "submit job", "empty video reference", nil)
	}

	payload, err := json.Marshal(runInput{
		StartURLs:  []startURL{{URL: ref.URL}},
		MaxResults: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("submit job: encode input: %w", err)
	}

	endpoint := c.endpoint("/acts/" + c.cfg.ActorID + "/runs")
	resp, err := c.gateway.Do(ctx, "apify submit", func(ctx context.Context) (*http.Request, error) {
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
			return nil, services.Wrap(services.ErrSubmissionRejected, "", "submit job", "actor rejected the request", err)
		}
		return nil, err
	}

	var envelope runEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("submit job: decode response: %w", err)
	}
	if envelope.Data.ID == "" {
		return nil, services.Wrap(services.ErrSubmissionRejected, "", "submit job", "response carried no run id", nil)
	}

	job := &Job{
		ID:           envelope.Data.ID,
		Status:       StatusPending,
		RemoteStatus: envelope.Data.Status,
		DatasetID:    envelope.Data.DefaultDatasetID,
		StartedAt:    c.now().UTC(),
	}
	logging.WithContext(ctx, c.logger).Debug("actor run submitted",
		logging.String("job_id", job.ID),
		logging.String("actor", c.cfg.ActorID))
	return job, nil
}

// AwaitCompletion polls the run until it reaches a terminal status, then
// fetches the transcript from the run's dataset. The poll budget is policy
// MaxWait; a run still pending or running when it elapses times the job out.
// Caller cancellation surfaces as the context's own error.
func (c *Client) AwaitCompletion(ctx context.Context, job *Job, policy PollPolicy) (*Transcript, error) {
	if job == nil || job.ID == "" {
		return nil, services.Wrap(services.ErrJobFailed, "", "poll job", "no job to poll", nil)
	}
	policy = policy.normalized()
	deadline := c.now().Add(policy.MaxWait)

	for !job.Status.Terminal() {
		if err := c.sleep(ctx, policy.Interval); err != nil {
			return nil, err
		}
		if c.now().After(deadline) {
			if err := job.advance(StatusTimedOut, ""); err != nil {
				return nil, err
			}
			return nil, services.Wrap(services.ErrPollTimeout, "", "poll job",
				fmt.Sprintf("run %s not finished after %s", job.ID, policy.MaxWait), nil)
		}

		state, err := c.fetchStatus(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if state.DefaultDatasetID != "" {
			job.DatasetID = state.DefaultDatasetID
		}
		if err := job.advance(ParseRemoteStatus(state.Status), state.Status); err != nil {
			return nil, err
		}
		logging.WithContext(ctx, c.logger).Debug("actor run status",
			logging.String("job_id", job.ID),
			logging.String("status", string(job.Status)),
			logging.String("remote_status", job.RemoteStatus))
	}

	if job.Status == StatusFailed {
		return nil, services.Wrap(services.ErrJobFailed, "", "poll job",
			"actor run ended with status "+job.RemoteStatus, nil)
	}
	if job.DatasetID == "" {
		return nil, services.Wrap(services.ErrJobFailed, "", "poll job",
			"run succeeded but returned no dataset id", nil)
	}
	return c.fetchTranscript(ctx, job.DatasetID)
}

func (c *Client) fetchStatus(ctx context.Context, runID string) (runState, error) {
	endpoint := c.endpoint("/actor-runs/" + runID)
	resp, err := c.gateway.Do(ctx, "apify status", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			return runState{}, services.Wrap(services.ErrJobFailed, "", "poll job", "status check rejected", err)
		}
		return runState{}, err
	}
	var envelope runEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return runState{}, fmt.Errorf("poll job: decode status: %w", err)
	}
	return envelope.Data, nil
}

func (c *Client) fetchTranscript(ctx context.Context, datasetID string) (*Transcript, error) {
	endpoint := c.endpoint("/datasets/" + datasetID + "/items")
	resp, err := c.gateway.Do(ctx, "apify dataset", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			return nil, services.Wrap(services.ErrJobFailed, "", "fetch transcript", "dataset request rejected", err)
		}
		return nil, err
	}

	var items []datasetItem
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, fmt.Errorf("fetch transcript: decode dataset: %w", err)
	}
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrNoCaptions, "", "fetch transcript",
			"dataset is empty, the video may have no captions", nil)
	}
	item := items[0]
	if strings.TrimSpace(item.Text) == "" {
		return nil, services.Wrap(services.ErrNoCaptions, "", "fetch transcript",
			"dataset item carried no transcript text", nil)
	}

	transcript := &Transcript{
		Title:   textutil.CleanTitle(item.Title),
		Channel: strings.TrimSpace(item.ChannelName),
		Text:    item.Text,
	}
	logging.WithContext(ctx, c.logger).Debug("transcript fetched",
		logging.String("title", textutil.Truncate(transcript.Title, 80)),
		logging.Int("characters", len(transcript.Text)))
	return transcript, nil
}

func (c *Client) endpoint(path string) string {
	return c.cfg.BaseURL + path + "?token=" + url.QueryEscape(c.cfg.APIKey)
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
