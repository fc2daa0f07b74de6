// Package deepgram adapts Deepgram live transcription to the recognizer
// boundary using the v3 websocket callback client.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sonoscribe/dictation-gateway/internal/recognizer"
)

// Model names per variant. The dictation variant uses Deepgram's medical
// model.
var modelNames = map[recognizer.ModelVariant]string{
	recognizer.ModelDictation: "nova-2-medical",
	recognizer.ModelGeneral:   "nova-2",
}

// Backend opens Deepgram live transcription streams.
type Backend struct {
	apiKey string
}

// New returns a backend; the key is required.
func New(apiKey string) (*Backend, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram api key is empty")
	}
	return &Backend{apiKey: apiKey}, nil
}

// Open dials a Deepgram live websocket. Results arrive through the callback
// handler and are relayed onto the stream's event channel.
func (b *Backend) Open(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Stream, error) {
	s := &stream{events: make(chan recognizer.Event, 64)}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          modelNames[cfg.Model],
		Language:       cfg.LanguageCode,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     cfg.SampleRateHertz,
	}

	callback := &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		stream:                 s,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, b.apiKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("creating deepgram client: %w", err)
	}
	s.client = client
	return s, nil
}

type stream struct {
	client *listenClient.WSCallback

	// mu serializes event delivery against close: SDK callbacks can race
	// the connection shutting down.
	mu     sync.Mutex
	closed bool
	events chan recognizer.Event
}

func (s *stream) Write(chunk []byte) error {
	_, err := s.client.Write(chunk)
	if err != nil {
		return fmt.Errorf("writing audio to deepgram: %w", err)
	}
	return nil
}

// End sends the finish message; Deepgram flushes pending results and then
// closes the connection, which closes the event channel via the callback.
func (s *stream) End() error {
	s.client.Finish()
	return nil
}

func (s *stream) Events() <-chan recognizer.Event {
	return s.events
}

func (s *stream) emit(ev recognizer.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// callbackHandler embeds the SDK default handler and overrides only the
// messages the stream cares about.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	stream *stream
}

func (h *callbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil {
		return nil
	}
	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return nil
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return nil
		}
		h.stream.emit(recognizer.Event{Result: &recognizer.Result{
			Transcript: alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		}})
	}
	return nil
}

func (h *callbackHandler) Error(resp *msginterfaces.ErrorResponse) error {
	if resp != nil {
		h.stream.emit(recognizer.Event{Err: fmt.Errorf("deepgram: %s", resp.Description)})
	}
	h.stream.close()
	return nil
}

func (h *callbackHandler) Close(resp *msginterfaces.CloseResponse) error {
	h.stream.close()
	return nil
}
