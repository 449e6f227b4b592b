package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"tubeask/internal/config"
	"tubeask/internal/handlecache"
	"tubeask/internal/logging"
	"tubeask/internal/runs"
	"tubeask/internal/services/apify"
	"tubeask/internal/services/gemini"
	"tubeask/internal/videoref"
)

// TranscriptService submits transcript extraction jobs and waits for their
// results. Implemented by apify.Client.
type TranscriptService interface {
	Submit(ctx context.Context, ref videoref.Ref) (*apify.Job, error)
	AwaitCompletion(ctx context.Context, job *apify.Job, policy apify.PollPolicy) (*apify.Transcript, error)
}

// KnowledgeService registers transcripts as addressable artifacts and answers
// questions grounded in them. Implemented by gemini.Client.
type KnowledgeService interface {
	Upload(ctx context.Context, doc gemini.Document) (gemini.Handle, error)
	Ask(ctx context.Context, question string, handles []gemini.Handle) (*gemini.Answer, error)
}

// IndexResult describes a successfully indexed video.
type IndexResult struct {
	RunKey  string
	VideoID string
	Title   string
	Channel string
	Handle  gemini.Handle
}

// AskResult carries the grounded answer for a question together with the
// artifact it was answered against. ReusedHandle reports that the artifact
// came from the handle cache instead of a fresh upload.
type AskResult struct {
	IndexResult
	ReusedHandle bool
	Answer       gemini.Answer
}

// Orchestrator drives a video through the submit, poll, upload, and query
// stages. Runs are sequential; the orchestrator holds no per-run state and a
// single instance serves any number of runs.
type Orchestrator struct {
	cfg         *config.Config
	transcripts TranscriptService
	knowledge   KnowledgeService
	logger      *slog.Logger
	store       *runs.Store
	cache       *handlecache.Cache
	newRunKey   func() string
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithStore enables best-effort run ledger recording.
func WithStore(store *runs.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithHandleCache enables artifact handle reuse for questions about
// previously indexed videos.
func WithHandleCache(cache *handlecache.Cache) Option {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// New constructs an orchestrator around the supplied backend clients.
func New(cfg *config.Config, transcripts TranscriptService, knowledge KnowledgeService, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:         cfg,
		transcripts: transcripts,
		knowledge:   knowledge,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		newRunKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IndexVideo extracts the transcript for the referenced video and registers
// it with the knowledge store, returning the artifact handle.
func (o *Orchestrator) IndexVideo(ctx context.Context, rawURL string) (*IndexResult, error) {
	res, err := o.execute(ctx, rawURL, "", false)
	if err != nil {
		return nil, err
	}
	out := res.IndexResult
	return &out, nil
}

// Query runs the full pipeline and surfaces both the artifact handle and the
// grounded answer.
func (o *Orchestrator) Query(ctx context.Context, rawURL, question string) (*AskResult, error) {
	return o.execute(ctx, rawURL, question, true)
}

// AskAboutVideo runs the full pipeline and returns the grounded answer.
func (o *Orchestrator) AskAboutVideo(ctx context.Context, rawURL, question string) (*gemini.Answer, error) {
	res, err := o.Query(ctx, rawURL, question)
	if err != nil {
		return nil, err
	}
	answer := res.Answer
	return &answer, nil
}
