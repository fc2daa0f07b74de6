package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sonoscribe/dictation-gateway/internal/enhance"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer/mock"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu          sync.Mutex
	started     int
	stopped     int
	errors      []string
	transcripts []TranscriptEvent
	enhanced    []*enhance.Result
}

func (e *recordingEmitter) StreamingStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started++
}

func (e *recordingEmitter) StreamingTranscript(ev TranscriptEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transcripts = append(e.transcripts, ev)
}

func (e *recordingEmitter) TranscriptEnhanced(res *enhance.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enhanced = append(e.enhanced, res)
}

func (e *recordingEmitter) StreamingError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, msg)
}

func (e *recordingEmitter) StreamingStopped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped++
}

func (e *recordingEmitter) snapshot() (started, stopped int, errs []string, transcripts []TranscriptEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs = append([]string(nil), e.errors...)
	transcripts = append([]TranscriptEvent(nil), e.transcripts...)
	return e.started, e.stopped, errs, transcripts
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartWithoutBackendIsRetryable(t *testing.T) {
	em := &recordingEmitter{}
	s := New(nil, em, Options{})

	err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US", SampleRateHertz: 16000})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Start() error = %v, want ErrNotConfigured", err)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("State() = %v, want idle", got)
	}

	_, _, errs, _ := em.snapshot()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}

	// The failure is retryable: a second start gives the same result
	// instead of a dead session.
	if err := s.Start(context.Background(), StartConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("second Start() error = %v, want ErrNotConfigured", err)
	}
}

func TestStartSelectsModelVariant(t *testing.T) {
	tests := []struct {
		lang string
		want recognizer.ModelVariant
	}{
		{"en-US", recognizer.ModelDictation},
		{"es-MX", recognizer.ModelGeneral},
	}
	for _, tt := range tests {
		backend := mock.New()
		em := &recordingEmitter{}
		s := New(backend, em, Options{})

		if err := s.Start(context.Background(), StartConfig{LanguageCode: tt.lang, SampleRateHertz: 16000}); err != nil {
			t.Fatalf("Start(%q) failed: %v", tt.lang, err)
		}
		got := backend.Streams()[0].Config().Model
		if got != tt.want {
			t.Errorf("model for %q = %q, want %q", tt.lang, got, tt.want)
		}
		s.Disconnect()
	}
}

func TestStartWhileStreamingRejected(t *testing.T) {
	backend := mock.New()
	em := &recordingEmitter{}
	s := New(backend, em, Options{})

	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStreaming", err)
	}
	s.Disconnect()
}

func TestAudioForwardedInOrderAndDroppedOutsideWindow(t *testing.T) {
	backend := mock.New()
	em := &recordingEmitter{}
	s := New(backend, em, Options{})

	// Before start: dropped silently.
	if err := s.Audio([]byte{0x01}); err != nil {
		t.Fatalf("Audio() before start = %v, want nil", err)
	}

	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	chunks := [][]byte{{0x0a}, {0x0b, 0x0b}, {0x0c}}
	for _, c := range chunks {
		if err := s.Audio(c); err != nil {
			t.Fatalf("Audio() failed: %v", err)
		}
	}

	stream := backend.Streams()[0]
	written := stream.WrittenChunks()
	if len(written) != len(chunks) {
		t.Fatalf("written %d chunks, want %d (pre-start chunk must be dropped)", len(written), len(chunks))
	}
	for i := range chunks {
		if string(written[i]) != string(chunks[i]) {
			t.Errorf("chunk %d = %v, want %v", i, written[i], chunks[i])
		}
	}
	s.Disconnect()
}

func TestTranscriptsForwardedInBackendOrder(t *testing.T) {
	backend := mock.New(mock.Utterance{
		Partials:   []string{"left", "left ventricle"},
		Final:      "left ventricle appears normal",
		Confidence: 0.9,
	})
	em := &recordingEmitter{}
	s := New(backend, em, Options{})

	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Audio([]byte{byte(i)}); err != nil {
			t.Fatalf("Audio() failed: %v", err)
		}
	}

	waitFor(t, "three transcripts", func() bool {
		_, _, _, tr := em.snapshot()
		return len(tr) == 3
	})

	_, _, _, tr := em.snapshot()
	want := []TranscriptEvent{
		{Transcript: "left"},
		{Transcript: "left ventricle"},
		{Transcript: "left ventricle appears normal", IsFinal: true, Confidence: 0.9},
	}
	for i := range want {
		if tr[i] != want[i] {
			t.Errorf("transcript %d = %+v, want %+v", i, tr[i], want[i])
		}
	}
	s.Disconnect()
}

func TestStopEmitsExactlyOneStopped(t *testing.T) {
	backend := mock.New()
	em := &recordingEmitter{}
	s := New(backend, em, Options{})

	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	waitFor(t, "stopped event", func() bool {
		_, stopped, _, _ := em.snapshot()
		return stopped == 1
	})
	if got := s.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}

	// A second stop and a disconnect change nothing.
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() = %v, want nil", err)
	}
	s.Disconnect()
	started, stopped, errs, _ := em.snapshot()
	if started != 1 || stopped != 1 || len(errs) != 0 {
		t.Errorf("events = (started %d, stopped %d, errors %v), want (1, 1, none)", started, stopped, errs)
	}
}

func TestBackendErrorMovesToErroredAndAllowsRestart(t *testing.T) {
	backend := mock.New()
	em := &recordingEmitter{}
	s := New(backend, em, Options{})

	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	backend.Streams()[0].Fail(errors.New("upstream quota exceeded"))

	waitFor(t, "error event", func() bool {
		_, _, errs, _ := em.snapshot()
		return len(errs) == 1
	})
	if got := s.State(); got != StateErrored {
		t.Fatalf("State() = %v, want errored", got)
	}
	_, stopped, errs, _ := em.snapshot()
	if stopped != 0 {
		t.Errorf("stopped = %d, want 0 on error path", stopped)
	}
	if errs[0] != "upstream quota exceeded" {
		t.Errorf("error message = %q, want backend message verbatim", errs[0])
	}

	// No automatic retry happened; an explicit restart opens a new stream.
	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if len(backend.Streams()) != 2 {
		t.Errorf("streams opened = %d, want 2", len(backend.Streams()))
	}
	s.Disconnect()
}

func TestUnexpectedStreamCloseBecomesError(t *testing.T) {
	backend := mock.New()
	em := &recordingEmitter{}
	s := New(backend, em, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx, StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	// Killing the stream context closes the event channel without a stop.
	cancel()

	waitFor(t, "error event", func() bool {
		_, _, errs, _ := em.snapshot()
		return len(errs) == 1
	})
	if got := s.State(); got != StateErrored {
		t.Errorf("State() = %v, want errored", got)
	}
}

func TestDisconnectIsIdempotentAndSilent(t *testing.T) {
	backend := mock.New()
	em := &recordingEmitter{}
	s := New(backend, em, Options{})

	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	s.Disconnect()
	s.Disconnect()

	if got := s.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
	if err := s.Start(context.Background(), StartConfig{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Start() after disconnect = %v, want ErrSessionClosed", err)
	}

	// Give any stale stream goroutine a moment, then check no events leaked.
	time.Sleep(20 * time.Millisecond)
	started, stopped, errs, _ := em.snapshot()
	if started != 1 || stopped != 0 || len(errs) != 0 {
		t.Errorf("events after disconnect = (started %d, stopped %d, errors %v)", started, stopped, errs)
	}
}

func TestEnhanceFinalsEmitsEnhancedEvent(t *testing.T) {
	backend := mock.New(mock.Utterance{
		Final:      "ejection fraction 55 percent, left ventricle normal",
		Confidence: 0.95,
	})
	em := &recordingEmitter{}
	s := New(backend, em, Options{EnhanceFinals: true, ProcedureType: "cardiac"})

	if err := s.Start(context.Background(), StartConfig{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Audio([]byte{0x01}); err != nil {
		t.Fatalf("Audio() failed: %v", err)
	}

	waitFor(t, "enhanced event", func() bool {
		em.mu.Lock()
		defer em.mu.Unlock()
		return len(em.enhanced) == 1
	})

	em.mu.Lock()
	res := em.enhanced[0]
	em.mu.Unlock()
	if res.DetectedSection != "left ventricle" {
		t.Errorf("DetectedSection = %q, want %q", res.DetectedSection, "left ventricle")
	}
	s.Disconnect()
}
