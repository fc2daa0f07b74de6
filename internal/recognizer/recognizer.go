// Package recognizer defines the boundary to streaming speech-recognition
// providers. A Backend opens one Stream per dictation session; the stream
// accepts raw audio frames and delivers transcription results on an event
// channel until it terminates.
package recognizer

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned when no recognition provider is configured.
// Callers may surface it and retry after fixing configuration.
var ErrNotConfigured = errors.New("recognition backend not configured")

// ModelVariant selects between the provider's enhanced dictation model and
// its general-purpose model.
type ModelVariant string

const (
	ModelDictation ModelVariant = "dictation"
	ModelGeneral   ModelVariant = "general"
)

// modelPolicy maps language-tag prefixes to the model variant. Longest prefix
// wins; unmatched languages fall back to the general model.
var modelPolicy = []struct {
	prefix  string
	variant ModelVariant
}{
	{"en", ModelDictation},
}

// ModelFor returns the model variant for a BCP-47 language tag.
func ModelFor(languageCode string) ModelVariant {
	lang := strings.ToLower(languageCode)
	for _, p := range modelPolicy {
		if strings.HasPrefix(lang, p.prefix) {
			return p.variant
		}
	}
	return ModelGeneral
}

// StreamConfig carries the per-stream parameters a provider needs.
type StreamConfig struct {
	LanguageCode    string
	SampleRateHertz int
	Model           ModelVariant
}

// Result is a single transcription hypothesis from the provider, forwarded
// verbatim. Confidence is 0 when the provider does not report one.
type Result struct {
	Transcript string
	IsFinal    bool
	Confidence float64
}

// Event is one item on a stream's event channel: a result or a terminal
// error. After an error event the stream is dead and the channel closes.
type Event struct {
	Result *Result
	Err    error
}

// Stream is one live recognition stream. Write and End are called from the
// session goroutine; Events is consumed by a single reader. The channel is
// closed when the stream ends, gracefully or not.
type Stream interface {
	Write(chunk []byte) error
	End() error
	Events() <-chan Event
}

// Backend opens recognition streams. Implementations must be safe for
// concurrent Open calls.
type Backend interface {
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}
