package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tubeask/internal/handlecache"
	"tubeask/internal/logging"
	"tubeask/internal/runs"
	"tubeask/internal/services"
	"tubeask/internal/services/apify"
	"tubeask/internal/services/gemini"
	"tubeask/internal/videoref"
)

type runState struct {
	key       string
	question  string
	stage     Stage
	record    *runs.Run
	reused    bool
	startedAt time.Time
}

func (st *runState) transition(next Stage) error {
	if !st.stage.CanTransition(next) {
		return fmt.Errorf("%s: advance run: illegal transition to %s", st.stage, next)
	}
	st.stage = next
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, rawURL, question string, wantAnswer bool) (*AskResult, error) {
	st := &runState{
		key:       o.newRunKey(),
		question:  strings.TrimSpace(question),
		stage:     StageIdle,
		startedAt: time.Now(),
	}
	ctx = services.WithRunKey(ctx, st.key)

	if err := o.cfg.RequireCredentials(); err != nil {
		return nil, o.fail(ctx, st, err)
	}

	st.record = o.beginRecord(ctx, st, rawURL)

	if wantAnswer && st.question == "" {
		return nil, o.fail(ctx, st, services.Wrap(services.ErrValidation, "", "validate question", "question must not be empty", nil))
	}
	ref, err := videoref.Parse(rawURL)
	if err != nil {
		return nil, o.fail(ctx, st, err)
	}
	ctx = services.WithVideoID(ctx, ref.ID)
	if st.record != nil {
		st.record.VideoID = ref.ID
	}

	res := &AskResult{IndexResult: IndexResult{RunKey: st.key, VideoID: ref.ID}}

	if wantAnswer {
		if entry, ok := o.lookupHandle(ctx, ref.ID); ok {
			st.reused = true
			res.ReusedHandle = true
			res.Title = entry.Title
			res.Channel = entry.Channel
			res.Handle = gemini.Handle{Name: entry.ArtifactName, URI: entry.ArtifactURI}
			o.recordArtifact(st, res)
			if err := o.advance(ctx, st, StageQuerying); err != nil {
				return nil, o.fail(ctx, st, err)
			}
			return o.answer(ctx, st, res)
		}
	}

	if err := o.advance(ctx, st, StageSubmitting); err != nil {
		return nil, o.fail(ctx, st, err)
	}
	job, err := o.transcripts.Submit(ctx, ref)
	if err != nil {
		return nil, o.fail(ctx, st, err)
	}
	if st.record != nil {
		st.record.JobID = job.ID
	}

	if err := o.advance(ctx, st, StagePolling, logging.String("job_id", job.ID)); err != nil {
		return nil, o.fail(ctx, st, err)
	}
	policy := apify.PollPolicy{Interval: o.cfg.PollInterval(), MaxWait: o.cfg.PollMaxWait()}
	transcript, err := o.transcripts.AwaitCompletion(ctx, job, policy)
	if err != nil {
		return nil, o.fail(ctx, st, err)
	}
	res.Title = transcript.Title
	res.Channel = transcript.Channel
	if st.record != nil {
		st.record.Title = transcript.Title
		st.record.Channel = transcript.Channel
	}

	if err := o.advance(ctx, st, StageUploading); err != nil {
		return nil, o.fail(ctx, st, err)
	}
	doc := gemini.Document{
		DisplayName: "youtube_transcript_" + ref.ID + ".txt",
		Title:       transcript.Title,
		Channel:     transcript.Channel,
		Text:        transcript.Text,
	}
	handle, err := o.knowledge.Upload(ctx, doc)
	if err != nil {
		return nil, o.fail(ctx, st, err)
	}
	res.Handle = handle
	o.recordArtifact(st, res)
	o.storeHandle(ctx, res)

	if !wantAnswer {
		if err := o.advance(ctx, st, StageDone); err != nil {
			return nil, o.fail(ctx, st, err)
		}
		return res, nil
	}

	if err := o.advance(ctx, st, StageQuerying); err != nil {
		return nil, o.fail(ctx, st, err)
	}
	return o.answer(ctx, st, res)
}

func (o *Orchestrator) answer(ctx context.Context, st *runState, res *AskResult) (*AskResult, error) {
	answer, err := o.knowledge.Ask(ctx, st.question, []gemini.Handle{res.Handle})
	if err != nil {
		o.dropStaleHandle(ctx, st, res.VideoID, err)
		return nil, o.fail(ctx, st, err)
	}
	res.Answer = *answer
	if err := o.advance(ctx, st, StageDone); err != nil {
		return nil, o.fail(ctx, st, err)
	}
	return res, nil
}

// advance moves the run to the next stage, logs the transition, and mirrors
// it to the run ledger.
func (o *Orchestrator) advance(ctx context.Context, st *runState, next Stage, attrs ...logging.Attr) error {
	if err := st.transition(next); err != nil {
		return err
	}
	stageCtx := services.WithStage(ctx, string(next))
	logger := logging.WithContext(stageCtx, o.logger)
	if next == StageDone {
		logger.Info("run completed",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.Bool("reused_handle", st.reused),
			logging.Duration("run_duration", time.Since(st.startedAt)),
		)
	} else {
		args := append([]logging.Attr{logging.String(logging.FieldEventType, "stage_start")}, attrs...)
		logger.Info("stage started", logging.Args(args...)...)
	}
	o.recordStage(stageCtx, st)
	return nil
}

// beginRecord opens a ledger row for the run. Ledger problems are reported
// and swallowed; the pipeline never depends on history.
func (o *Orchestrator) beginRecord(ctx context.Context, st *runState, videoURL string) *runs.Run {
	if o.store == nil {
		return nil
	}
	record, err := o.store.NewRun(ctx, st.key, videoURL, "", st.question)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger),
			"could not open run ledger row", "run_ledger_insert_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history will not show this run"),
		)
		return nil
	}
	return record
}

func (o *Orchestrator) recordStage(ctx context.Context, st *runState) {
	if o.store == nil || st.record == nil {
		return
	}
	st.record.Status = st.stage.RunStatus()
	if err := o.store.Update(ctx, st.record); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger),
			"could not update run ledger row", "run_ledger_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history will not reflect this run"),
		)
	}
}

func (o *Orchestrator) recordArtifact(st *runState, res *AskResult) {
	if st.record == nil {
		return
	}
	st.record.ArtifactName = res.Handle.Name
	st.record.ArtifactURI = res.Handle.URI
	st.record.Title = res.Title
	st.record.Channel = res.Channel
}

// lookupHandle consults the handle cache for a previously uploaded artifact.
func (o *Orchestrator) lookupHandle(ctx context.Context, videoID string) (handlecache.Entry, bool) {
	if o.cache == nil {
		return handlecache.Entry{}, false
	}
	entry, ok := o.cache.Lookup(videoID)
	if !ok {
		return handlecache.Entry{}, false
	}
	logging.WithContext(ctx, o.logger).Info("reusing cached artifact handle",
		logging.String(logging.FieldEventType, "handle_cache_hit"),
		logging.String("artifact_uri", entry.ArtifactURI),
	)
	return entry, true
}

// storeHandle remembers a freshly uploaded artifact for later reuse.
func (o *Orchestrator) storeHandle(ctx context.Context, res *AskResult) {
	if o.cache == nil {
		return
	}
	entry := handlecache.Entry{
		VideoID:      res.VideoID,
		ArtifactName: res.Handle.Name,
		ArtifactURI:  res.Handle.URI,
		Title:        res.Title,
		Channel:      res.Channel,
	}
	if err := o.cache.Store(entry); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger),
			"could not cache artifact handle", "handle_cache_store_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the transcript will be re-indexed next time"),
		)
	}
}

// dropStaleHandle evicts a reused cache entry whose artifact the knowledge
// store no longer accepts. Uploaded files expire upstream, so a generation
// failure against a cached handle usually means the artifact is gone.
func (o *Orchestrator) dropStaleHandle(ctx context.Context, st *runState, videoID string, cause error) {
	if !st.reused || o.cache == nil {
		return
	}
	if !errors.Is(cause, services.ErrGenerationFailed) {
		return
	}
	if err := o.cache.Remove(videoID); err != nil {
		return
	}
	logging.WithContext(ctx, o.logger).Warn("evicted stale artifact handle",
		logging.String(logging.FieldEventType, "handle_cache_evicted"),
		logging.String(logging.FieldErrorHint, "re-run the question to re-index the video"),
	)
}
