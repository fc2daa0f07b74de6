// Package session implements the per-connection dictation session: a state
// machine owning at most one recognition stream at a time, forwarding audio
// to it and relaying its results back through an Emitter in backend order.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonoscribe/dictation-gateway/internal/enhance"
	"github.com/sonoscribe/dictation-gateway/internal/observability"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateStopping
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConfigured mirrors the recognizer sentinel: no backend is
	// available, but the caller may retry after fixing configuration.
	ErrNotConfigured = recognizer.ErrNotConfigured

	// ErrAlreadyStreaming is returned when Start is called while a stream
	// is being opened, active, or draining.
	ErrAlreadyStreaming = errors.New("session already streaming")

	// ErrSessionClosed is returned after Disconnect.
	ErrSessionClosed = errors.New("session disconnected")
)

// TranscriptEvent is one recognition result relayed to the client.
type TranscriptEvent struct {
	Transcript string  `json:"transcript"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Emitter receives session events in order. Implementations serialize their
// own writes; the session calls them from at most one goroutine at a time
// per event kind ordering guarantee.
type Emitter interface {
	StreamingStarted()
	StreamingTranscript(TranscriptEvent)
	TranscriptEnhanced(*enhance.Result)
	StreamingError(message string)
	StreamingStopped()
}

// StartConfig carries the client's streaming parameters.
type StartConfig struct {
	LanguageCode    string
	SampleRateHertz int
}

// Options tune session behavior.
type Options struct {
	// EnhanceFinals runs the enhancement pipeline on each final transcript
	// and emits an additional enhanced event.
	EnhanceFinals bool

	// ProcedureType used when enhancing finals.
	ProcedureType string
}

// Session is one dictation session. All methods are safe for concurrent use.
type Session struct {
	id      string
	backend recognizer.Backend
	emitter Emitter
	opts    Options
	log     zerolog.Logger

	mu           sync.Mutex
	state        State
	stream       recognizer.Stream
	cancelStream context.CancelFunc
	language     string
	disconnected bool

	// gen increments on every Start and Disconnect so a stale stream
	// goroutine can never touch a newer session incarnation.
	gen int
}

// New creates an idle session. A nil backend is allowed: Start then reports
// ErrNotConfigured and the session stays usable for a later retry.
func New(backend recognizer.Backend, emitter Emitter, opts Options) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		backend: backend,
		emitter: emitter,
		opts:    opts,
		log:     observability.WithSession(id),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens a recognition stream. Legal from Idle, Errored, and Closed;
// an in-flight or active stream makes it fail with ErrAlreadyStreaming.
// The streaming-started event is emitted only once the stream is open.
func (s *Session) Start(ctx context.Context, cfg StartConfig) error {
	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.state {
	case StateIdle, StateErrored, StateClosed:
	default:
		s.mu.Unlock()
		return ErrAlreadyStreaming
	}
	if s.backend == nil {
		s.mu.Unlock()
		observability.RecordError("not_configured", "session")
		s.emitter.StreamingError(ErrNotConfigured.Error())
		return ErrNotConfigured
	}

	s.state = StateStarting
	s.gen++
	gen := s.gen
	s.language = cfg.LanguageCode
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancelStream = cancel
	s.mu.Unlock()

	streamCfg := recognizer.StreamConfig{
		LanguageCode:    cfg.LanguageCode,
		SampleRateHertz: cfg.SampleRateHertz,
		Model:           recognizer.ModelFor(cfg.LanguageCode),
	}
	stream, err := s.backend.Open(streamCtx, streamCfg)

	s.mu.Lock()
	if s.gen != gen || s.disconnected {
		s.mu.Unlock()
		cancel()
		return ErrSessionClosed
	}
	if err != nil {
		s.state = StateErrored
		s.cancelStream = nil
		s.mu.Unlock()
		cancel()
		observability.RecordError("open_failed", "session")
		s.log.Error().Err(err).Msg("failed to open recognition stream")
		s.emitter.StreamingError(err.Error())
		return err
	}
	s.stream = stream
	s.state = StateStreaming
	s.mu.Unlock()

	s.log.Info().
		Str("language", cfg.LanguageCode).
		Str("model", string(streamCfg.Model)).
		Msg("streaming started")
	s.emitter.StreamingStarted()

	go s.pump(gen, stream)
	return nil
}

// Audio forwards one chunk to the open stream in arrival order. Chunks that
// arrive outside the streaming window are dropped and counted, never failed.
func (s *Session) Audio(chunk []byte) error {
	s.mu.Lock()
	if s.state != StateStreaming {
		state := s.state
		s.mu.Unlock()
		observability.RecordDroppedChunk()
		s.log.Debug().
			Stringer("state", state).
			Int("bytes", len(chunk)).
			Msg("dropping audio chunk outside streaming window")
		return nil
	}
	gen := s.gen
	stream := s.stream
	s.mu.Unlock()

	if err := stream.Write(chunk); err != nil {
		s.fail(gen, err)
		return err
	}
	observability.RecordAudioBytes(len(chunk))
	return nil
}

// Stop begins a graceful shutdown: end-of-audio goes to the backend and the
// session drains remaining results before emitting streaming-stopped. A stop
// outside Streaming is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	gen := s.gen
	stream := s.stream
	s.mu.Unlock()

	s.log.Info().Msg("stopping streaming")
	if err := stream.End(); err != nil {
		s.fail(gen, err)
		return err
	}
	return nil
}

// Disconnect tears the session down immediately: the stream is cancelled,
// no further events are emitted, and every later call fails. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		return
	}
	s.disconnected = true
	s.gen++
	s.state = StateClosed
	s.stream = nil
	cancel := s.cancelStream
	s.cancelStream = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.log.Info().Msg("session disconnected")
}

// pump relays stream events until the backend closes the channel. gen pins
// the session incarnation this stream belongs to.
func (s *Session) pump(gen int, stream recognizer.Stream) {
	for ev := range stream.Events() {
		if ev.Err != nil {
			s.fail(gen, ev.Err)
			continue
		}
		s.forward(gen, ev.Result)
	}
	s.streamClosed(gen)
}

func (s *Session) forward(gen int, r *recognizer.Result) {
	s.mu.Lock()
	if s.gen != gen || (s.state != StateStreaming && s.state != StateStopping) {
		s.mu.Unlock()
		return
	}
	language := s.language
	s.mu.Unlock()

	observability.RecordTranscript(r.IsFinal)
	s.emitter.StreamingTranscript(TranscriptEvent{
		Transcript: r.Transcript,
		IsFinal:    r.IsFinal,
		Confidence: r.Confidence,
	})

	if r.IsFinal && s.opts.EnhanceFinals {
		res := enhance.Enhance(enhance.Request{
			Transcript:    r.Transcript,
			ProcedureType: s.opts.ProcedureType,
			Language:      language,
		})
		s.emitter.TranscriptEnhanced(res)
	}
}

// fail moves the session to Errored and surfaces the backend message
// verbatim. No retry is attempted; the client may start a fresh stream.
func (s *Session) fail(gen int, err error) {
	s.mu.Lock()
	if s.gen != gen || s.state == StateErrored || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	s.stream = nil
	cancel := s.cancelStream
	s.cancelStream = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	observability.RecordError("backend", "session")
	s.log.Error().Err(err).Msg("recognition stream failed")
	s.emitter.StreamingError(err.Error())
}

// streamClosed handles the event channel closing. During Stopping this is
// the graceful end; during Streaming it is an unexpected termination.
func (s *Session) streamClosed(gen int) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	state := s.state
	if state == StateStopping || state == StateStreaming {
		s.stream = nil
		if s.cancelStream != nil {
			s.cancelStream()
			s.cancelStream = nil
		}
	}
	switch state {
	case StateStopping:
		s.state = StateClosed
		s.mu.Unlock()
		s.log.Info().Msg("streaming stopped")
		s.emitter.StreamingStopped()
	case StateStreaming:
		s.state = StateErrored
		s.mu.Unlock()
		observability.RecordError("stream_closed", "session")
		s.log.Error().Msg("recognition stream closed unexpectedly")
		s.emitter.StreamingError("recognition stream closed unexpectedly")
	default:
		s.mu.Unlock()
	}
}
