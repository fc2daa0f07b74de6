// Package mock provides a scripted in-memory recognition backend for tests
// and credential-less development.
package mock

import (
	"context"
	"sync"

	"github.com/sonoscribe/dictation-gateway/internal/recognizer"
)

// Utterance scripts one recognition result sequence: zero or more interim
// partials followed by a final transcript.
type Utterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances is the canned clinical script used when a backend is
// built without one.
var DefaultUtterances = []Utterance{
	{
		Partials:   []string{"left ventricle", "left ventricle appears"},
		Final:      "left ventricle appears normal, ejection fraction 55%",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"no evidence"},
		Final:      "no evidence of pericardial effusion",
		Confidence: 0.91,
	},
}

// Backend hands out scripted streams. Each audio chunk written to a stream
// releases the next scripted event, so tests control pacing exactly.
type Backend struct {
	mu         sync.Mutex
	utterances []Utterance
	streams    []*Stream

	// OpenErr, when set, makes every Open call fail with it.
	OpenErr error
}

// New returns a backend scripted with the given utterances, or
// DefaultUtterances when none are given.
func New(utterances ...Utterance) *Backend {
	if len(utterances) == 0 {
		utterances = DefaultUtterances
	}
	return &Backend{utterances: utterances}
}

// Open creates a new scripted stream. The context cancels the stream.
func (b *Backend) Open(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}

	s := &Stream{
		cfg:    cfg,
		events: make(chan recognizer.Event, 16),
		script: flatten(b.utterances),
	}
	go func() {
		<-ctx.Done()
		s.close()
	}()
	b.streams = append(b.streams, s)
	return s, nil
}

// Streams returns every stream the backend has opened, in order.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Stream, len(b.streams))
	copy(out, b.streams)
	return out
}

func flatten(utterances []Utterance) []recognizer.Result {
	var out []recognizer.Result
	for _, u := range utterances {
		for _, p := range u.Partials {
			out = append(out, recognizer.Result{Transcript: p})
		}
		out = append(out, recognizer.Result{
			Transcript: u.Final,
			IsFinal:    true,
			Confidence: u.Confidence,
		})
	}
	return out
}

// Stream replays its script one event per written chunk and records every
// chunk for inspection.
type Stream struct {
	cfg    recognizer.StreamConfig
	script []recognizer.Result

	mu      sync.Mutex
	written [][]byte
	next    int
	closed  bool
	ended   bool

	events chan recognizer.Event
}

// Write records the chunk and emits the next scripted event, if any remain.
func (s *Stream) Write(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.written = append(s.written, c)

	if s.next < len(s.script) {
		r := s.script[s.next]
		s.next++
		s.events <- recognizer.Event{Result: &r}
	}
	return nil
}

// End marks end-of-audio and closes the event channel.
func (s *Stream) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.closeLocked()
	return nil
}

// Fail emits a terminal error event and closes the stream, simulating a
// provider failure mid-stream.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- recognizer.Event{Err: err}
	s.closeLocked()
}

func (s *Stream) Events() <-chan recognizer.Event { return s.events }

// Config returns the StreamConfig the stream was opened with.
func (s *Stream) Config() recognizer.StreamConfig { return s.cfg }

// WrittenChunks returns a copy of every audio chunk written so far.
func (s *Stream) WrittenChunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.written))
	copy(out, s.written)
	return out
}

// Ended reports whether End was called.
func (s *Stream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Stream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
