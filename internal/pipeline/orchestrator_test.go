package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tubeask/internal/config"
	"tubeask/internal/handlecache"
	"tubeask/internal/logging"
	"tubeask/internal/runs"
	"tubeask/internal/services"
	"tubeask/internal/services/apify"
	"tubeask/internal/services/gemini"
	"tubeask/internal/testsupport"
	"tubeask/internal/videoref"
)

const (
	testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	testVideoID  = "dQw4w9WgXcQ"
)

type fakeTranscripts struct {
	submitCalls int
	awaitCalls  int
	submitErr   error
	awaitErr    error
	job         *apify.Job
	transcript  *apify.Transcript
	lastRef     videoref.Ref
	lastPolicy  apify.PollPolicy
}

func (f *fakeTranscripts) Submit(ctx context.Context, ref videoref.Ref) (*apify.Job, error) {
	f.submitCalls++
	f.lastRef = ref
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	job := *f.job
	return &job, nil
}

func (f *fakeTranscripts) AwaitCompletion(ctx context.Context, job *apify.Job, policy apify.PollPolicy) (*apify.Transcript, error) {
	f.awaitCalls++
	f.lastPolicy = policy
	if f.awaitErr != nil {
		return nil, f.awaitErr
	}
	return f.transcript, nil
}

type fakeKnowledge struct {
	uploadCalls  int
	askCalls     int
	uploadErr    error
	askErr       error
	handles      []gemini.Handle
	answer       gemini.Answer
	lastDoc      gemini.Document
	lastQuestion string
	lastHandles  []gemini.Handle
}

func (f *fakeKnowledge) Upload(ctx context.Context, doc gemini.Document) (gemini.Handle, error) {
	f.uploadCalls++
	f.lastDoc = doc
	if f.uploadErr != nil {
		return gemini.Handle{}, f.uploadErr
	}
	idx := f.uploadCalls - 1
	if idx >= len(f.handles) {
		idx = len(f.handles) - 1
	}
	return f.handles[idx], nil
}

func (f *fakeKnowledge) Ask(ctx context.Context, question string, handles []gemini.Handle) (*gemini.Answer, error) {
	f.askCalls++
	f.lastQuestion = question
	f.lastHandles = handles
	if f.askErr != nil {
		return nil, f.askErr
	}
	answer := f.answer
	return &answer, nil
}

func newTestBackends() (*fakeTranscripts, *fakeKnowledge) {
	transcripts := &fakeTranscripts{
		job:        &apify.Job{ID: "run-1", Status: apify.StatusPending},
		transcript: &apify.Transcript{Title: "A Video", Channel: "A Channel", Text: "the speaker explains compilers"},
	}
	knowledge := &fakeKnowledge{
		handles: []gemini.Handle{{Name: "files/abc123", URI: "https://files.example/abc123"}},
		answer: gemini.Answer{
			Text:      "The speaker explains compilers.",
			Citations: []gemini.Citation{{StartIndex: 0, EndIndex: 31, URI: "https://files.example/abc123"}},
		},
	}
	return transcripts, knowledge
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, opts ...Option) (*Orchestrator, *fakeTranscripts, *fakeKnowledge) {
	t.Helper()
	if cfg == nil {
		cfg = testsupport.NewConfig(t)
	}
	transcripts, knowledge := newTestBackends()
	return New(cfg, transcripts, knowledge, logging.NewNop(), opts...), transcripts, knowledge
}

func failureStage(t *testing.T, err error) Stage {
	t.Helper()
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("error %v is not a *Failure", err)
	}
	return failure.Stage
}

func TestIndexVideoRunsSubmitPollUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	o, transcripts, knowledge := newTestOrchestrator(t, cfg, WithStore(store))

	res, err := o.IndexVideo(context.Background(), testVideoURL)
	if err != nil {
		t.Fatalf("IndexVideo failed: %v", err)
	}
	if res.VideoID != testVideoID {
		t.Errorf("VideoID = %q, want %q", res.VideoID, testVideoID)
	}
	if res.Title != "A Video" || res.Channel != "A Channel" {
		t.Errorf("unexpected metadata: %q / %q", res.Title, res.Channel)
	}
	if res.Handle.URI != "https://files.example/abc123" {
		t.Errorf("Handle.URI = %q", res.Handle.URI)
	}
	if res.RunKey == "" {
		t.Error("result should carry a run key")
	}
	if transcripts.submitCalls != 1 || transcripts.awaitCalls != 1 {
		t.Errorf("transcript calls = %d/%d, want 1/1", transcripts.submitCalls, transcripts.awaitCalls)
	}
	if knowledge.uploadCalls != 1 {
		t.Errorf("upload calls = %d, want 1", knowledge.uploadCalls)
	}
	if knowledge.askCalls != 0 {
		t.Errorf("ask calls = %d, want 0 for index", knowledge.askCalls)
	}
	if knowledge.lastDoc.DisplayName != "youtube_transcript_dQw4w9WgXcQ.txt" {
		t.Errorf("display name = %q", knowledge.lastDoc.DisplayName)
	}
	if transcripts.lastPolicy.Interval != cfg.PollInterval() || transcripts.lastPolicy.MaxWait != cfg.PollMaxWait() {
		t.Errorf("poll policy %+v does not match config", transcripts.lastPolicy)
	}

	record, err := store.GetByRunKey(context.Background(), res.RunKey)
	if err != nil {
		t.Fatalf("GetByRunKey failed: %v", err)
	}
	if record == nil {
		t.Fatal("run ledger row missing")
	}
	if record.Status != runs.StatusCompleted {
		t.Errorf("ledger status = %s, want completed", record.Status)
	}
	if record.JobID != "run-1" {
		t.Errorf("ledger job id = %q", record.JobID)
	}
	if record.ArtifactURI != "https://files.example/abc123" {
		t.Errorf("ledger artifact uri = %q", record.ArtifactURI)
	}
	if record.VideoID != testVideoID {
		t.Errorf("ledger video id = %q", record.VideoID)
	}
}

func TestQueryAnswersQuestion(t *testing.T) {
	o, _, knowledge := newTestOrchestrator(t, nil)

	res, err := o.Query(context.Background(), testVideoURL, "What does the speaker explain?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Answer.Text != "The speaker explains compilers." {
		t.Errorf("answer = %q", res.Answer.Text)
	}
	if len(res.Answer.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(res.Answer.Citations))
	}
	if res.ReusedHandle {
		t.Error("fresh run should not report a reused handle")
	}
	if knowledge.askCalls != 1 {
		t.Errorf("ask calls = %d, want 1", knowledge.askCalls)
	}
	if knowledge.lastQuestion != "What does the speaker explain?" {
		t.Errorf("question = %q", knowledge.lastQuestion)
	}
	if len(knowledge.lastHandles) != 1 || knowledge.lastHandles[0].URI != "https://files.example/abc123" {
		t.Errorf("ask grounded on %+v, want the uploaded handle", knowledge.lastHandles)
	}
}

func TestAskAboutVideoReturnsAnswer(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, nil)

	answer, err := o.AskAboutVideo(context.Background(), testVideoURL, "What does the speaker explain?")
	if err != nil {
		t.Fatalf("AskAboutVideo failed: %v", err)
	}
	if answer.Text != "The speaker explains compilers." {
		t.Errorf("answer = %q", answer.Text)
	}
}

func TestInvalidReferenceFailsBeforeAnyCall(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	o, transcripts, knowledge := newTestOrchestrator(t, cfg, WithStore(store))

	_, err := o.IndexVideo(context.Background(), "https://vimeo.com/12345")
	if !errors.Is(err, services.ErrInvalidReference) {
		t.Fatalf("error = %v, want ErrInvalidReference", err)
	}
	if transcripts.submitCalls != 0 || transcripts.awaitCalls != 0 || knowledge.uploadCalls != 0 || knowledge.askCalls != 0 {
		t.Error("invalid reference must fail before any backend call")
	}
	if stage := failureStage(t, err); stage != StageIdle {
		t.Errorf("failure stage = %s, want idle", stage)
	}

	rows, listErr := store.List(context.Background(), 1)
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	if rows[0].Status != runs.StatusFailed {
		t.Errorf("ledger status = %s, want failed", rows[0].Status)
	}
	if rows[0].FailureKind != "invalid_reference" {
		t.Errorf("failure kind = %q", rows[0].FailureKind)
	}
}

func TestMissingCredentialsFailBeforeAnyCall(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutCredentials())
	store := testsupport.MustOpenStore(t, cfg)
	o, transcripts, knowledge := newTestOrchestrator(t, cfg, WithStore(store))

	_, err := o.Query(context.Background(), testVideoURL, "anything?")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if !strings.Contains(err.Error(), config.EnvApifyAPIKey) || !strings.Contains(err.Error(), config.EnvGeminiAPIKey) {
		t.Errorf("error should name the missing variables, got %q", err.Error())
	}
	if transcripts.submitCalls != 0 || knowledge.uploadCalls != 0 || knowledge.askCalls != 0 {
		t.Error("missing credentials must fail before any backend call")
	}

	rows, listErr := store.List(context.Background(), 0)
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(rows) != 0 {
		t.Errorf("credential failures should not open ledger rows, found %d", len(rows))
	}
}

func TestEmptyQuestionFailsBeforeAnyCall(t *testing.T) {
	o, transcripts, knowledge := newTestOrchestrator(t, nil)

	_, err := o.Query(context.Background(), testVideoURL, "   ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if transcripts.submitCalls != 0 || knowledge.askCalls != 0 {
		t.Error("empty question must fail before any backend call")
	}
}

func TestJobFailureKeepsPollingStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	o, transcripts, knowledge := newTestOrchestrator(t, cfg, WithStore(store))
	transcripts.awaitErr = services.Wrap(services.ErrJobFailed, "", "poll job", "actor run ended with status ABORTED", nil)

	_, err := o.Query(context.Background(), testVideoURL, "anything?")
	if !errors.Is(err, services.ErrJobFailed) {
		t.Fatalf("error = %v, want ErrJobFailed", err)
	}
	if stage := failureStage(t, err); stage != StagePolling {
		t.Errorf("failure stage = %s, want polling", stage)
	}
	if knowledge.uploadCalls != 0 {
		t.Error("upload must not start after a failed job")
	}
	if !strings.HasPrefix(err.Error(), "polling: ") {
		t.Errorf("error %q should be stage-prefixed", err.Error())
	}

	rows, listErr := store.List(context.Background(), 1)
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(rows) != 1 || rows[0].FailureKind != "job_failed" {
		t.Fatalf("ledger should carry one job_failed row, got %+v", rows)
	}
	if rows[0].JobID != "run-1" {
		t.Errorf("ledger job id = %q", rows[0].JobID)
	}
}

func TestUploadFailureKeepsUploadingStage(t *testing.T) {
	o, _, knowledge := newTestOrchestrator(t, nil)
	knowledge.uploadErr = services.Wrap(services.ErrUploadRejected, "", "upload transcript", "file api rejected the upload", nil)

	_, err := o.Query(context.Background(), testVideoURL, "anything?")
	if !errors.Is(err, services.ErrUploadRejected) {
		t.Fatalf("error = %v, want ErrUploadRejected", err)
	}
	if stage := failureStage(t, err); stage != StageUploading {
		t.Errorf("failure stage = %s, want uploading", stage)
	}
	if knowledge.askCalls != 0 {
		t.Error("ask must not run after a rejected upload")
	}
}

func TestGenerationFailureKeepsQueryingStage(t *testing.T) {
	o, _, knowledge := newTestOrchestrator(t, nil)
	knowledge.askErr = services.Wrap(services.ErrGenerationFailed, "", "generate answer", "model returned no candidates", nil)

	_, err := o.Query(context.Background(), testVideoURL, "anything?")
	if !errors.Is(err, services.ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}
	if stage := failureStage(t, err); stage != StageQuerying {
		t.Errorf("failure stage = %s, want querying", stage)
	}
}

func TestIndexVideoTwiceProducesIndependentHandles(t *testing.T) {
	o, transcripts, knowledge := newTestOrchestrator(t, nil)
	knowledge.handles = []gemini.Handle{
		{Name: "files/first", URI: "https://files.example/first"},
		{Name: "files/second", URI: "https://files.example/second"},
	}

	first, err := o.IndexVideo(context.Background(), testVideoURL)
	if err != nil {
		t.Fatalf("first IndexVideo failed: %v", err)
	}
	second, err := o.IndexVideo(context.Background(), testVideoURL)
	if err != nil {
		t.Fatalf("second IndexVideo failed: %v", err)
	}
	if first.Handle.URI == second.Handle.URI {
		t.Error("each index run should produce its own artifact handle")
	}
	if transcripts.submitCalls != 2 || knowledge.uploadCalls != 2 {
		t.Errorf("calls = %d submits / %d uploads, want 2/2", transcripts.submitCalls, knowledge.uploadCalls)
	}
	if first.RunKey == second.RunKey {
		t.Error("each run should get its own run key")
	}
}

func TestQueryReusesCachedHandle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := handlecache.NewCache(cfg.HandleCache.Path, nil)
	if err := cache.Store(handlecache.Entry{
		VideoID:      testVideoID,
		ArtifactName: "files/cached",
		ArtifactURI:  "https://files.example/cached",
		Title:        "A Cached Video",
		Channel:      "A Channel",
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	o, transcripts, knowledge := newTestOrchestrator(t, cfg, WithHandleCache(cache))

	res, err := o.Query(context.Background(), testVideoURL, "anything?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !res.ReusedHandle {
		t.Error("result should report the reused handle")
	}
	if res.Handle.URI != "https://files.example/cached" {
		t.Errorf("Handle.URI = %q, want the cached artifact", res.Handle.URI)
	}
	if res.Title != "A Cached Video" {
		t.Errorf("Title = %q, want the cached title", res.Title)
	}
	if transcripts.submitCalls != 0 || transcripts.awaitCalls != 0 || knowledge.uploadCalls != 0 {
		t.Error("cache hit must skip submit, poll, and upload")
	}
	if knowledge.askCalls != 1 {
		t.Errorf("ask calls = %d, want 1", knowledge.askCalls)
	}
	if len(knowledge.lastHandles) != 1 || knowledge.lastHandles[0].URI != "https://files.example/cached" {
		t.Errorf("ask grounded on %+v, want the cached handle", knowledge.lastHandles)
	}
}

func TestQueryStoresHandleAfterUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := handlecache.NewCache(cfg.HandleCache.Path, nil)
	o, _, _ := newTestOrchestrator(t, cfg, WithHandleCache(cache))

	if _, err := o.Query(context.Background(), testVideoURL, "anything?"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	entry, ok := cache.Lookup(testVideoID)
	if !ok {
		t.Fatal("freshly uploaded handle should be cached")
	}
	if entry.ArtifactURI != "https://files.example/abc123" {
		t.Errorf("cached uri = %q", entry.ArtifactURI)
	}
	if entry.Title != "A Video" {
		t.Errorf("cached title = %q", entry.Title)
	}
}

func TestIndexVideoStoresHandle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := handlecache.NewCache(cfg.HandleCache.Path, nil)
	o, _, _ := newTestOrchestrator(t, cfg, WithHandleCache(cache))

	if _, err := o.IndexVideo(context.Background(), testVideoURL); err != nil {
		t.Fatalf("IndexVideo failed: %v", err)
	}
	if _, ok := cache.Lookup(testVideoID); !ok {
		t.Error("index should cache the uploaded handle")
	}
}

func TestStaleCachedHandleEvictedOnGenerationFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := handlecache.NewCache(cfg.HandleCache.Path, nil)
	if err := cache.Store(handlecache.Entry{
		VideoID:     testVideoID,
		ArtifactURI: "https://files.example/stale",
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	o, _, knowledge := newTestOrchestrator(t, cfg, WithHandleCache(cache))
	knowledge.askErr = services.Wrap(services.ErrGenerationFailed, "", "generate answer", "model request rejected", nil)

	_, err := o.Query(context.Background(), testVideoURL, "anything?")
	if !errors.Is(err, services.ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}
	if _, ok := cache.Lookup(testVideoID); ok {
		t.Error("stale cached handle should be evicted after a generation failure")
	}
}

func TestWithoutStoreRunsStillSucceed(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, nil)

	if _, err := o.IndexVideo(context.Background(), testVideoURL); err != nil {
		t.Fatalf("IndexVideo without a ledger failed: %v", err)
	}
}

func TestFailureUnwrapsToSentinel(t *testing.T) {
	o, transcripts, _ := newTestOrchestrator(t, nil)
	transcripts.submitErr = services.Wrap(services.ErrSubmissionRejected, "", "submit job", "actor rejected the request", nil)

	_, err := o.IndexVideo(context.Background(), testVideoURL)
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("error %v is not a *Failure", err)
	}
	if failure.Stage != StageSubmitting {
		t.Errorf("failure stage = %s, want submitting", failure.Stage)
	}
	if !errors.Is(failure, services.ErrSubmissionRejected) {
		t.Error("failure should unwrap to the sentinel")
	}
}
