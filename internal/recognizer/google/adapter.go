// Package google adapts Google Cloud Speech-to-Text v1 streaming recognition
// to the recognizer boundary. Requires GOOGLE_APPLICATION_CREDENTIALS.
package google

import (
	"context"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sonoscribe/dictation-gateway/internal/recognizer"
)

// Model names per variant. The dictation variant uses the medical dictation
// model with enhanced recognition.
var modelNames = map[recognizer.ModelVariant]string{
	recognizer.ModelDictation: "medical_dictation",
	recognizer.ModelGeneral:   "default",
}

// Backend opens Cloud Speech streaming recognition sessions. One shared
// client serves all streams.
type Backend struct {
	client *speech.Client
}

// New dials Cloud Speech using ambient credentials.
func New(ctx context.Context) (*Backend, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	return &Backend{client: c}, nil
}

// Close releases the underlying client connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

// Open starts a bidirectional recognition stream. The streaming config goes
// out as the first message; audio follows via Write.
func (b *Backend) Open(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Stream, error) {
	sr, err := b.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening recognition stream: %w", err)
	}

	model := modelNames[cfg.Model]
	err = sr.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(cfg.SampleRateHertz),
					LanguageCode:               cfg.LanguageCode,
					Model:                      model,
					UseEnhanced:                cfg.Model == recognizer.ModelDictation,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sending streaming config: %w", err)
	}

	s := &stream{
		sr:     sr,
		events: make(chan recognizer.Event, 64),
	}
	go s.receive()
	return s, nil
}

type stream struct {
	sr     speechpb.Speech_StreamingRecognizeClient
	events chan recognizer.Event
}

func (s *stream) Write(chunk []byte) error {
	return s.sr.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: chunk,
		},
	})
}

func (s *stream) End() error {
	return s.sr.CloseSend()
}

func (s *stream) Events() <-chan recognizer.Event {
	return s.events
}

// receive pumps recognition responses onto the event channel until the
// stream terminates. EOF and cancellation count as a clean close.
func (s *stream) receive() {
	defer close(s.events)
	for {
		resp, err := s.sr.Recv()
		if err != nil {
			if !isCleanClose(err) {
				s.events <- recognizer.Event{Err: fmt.Errorf("recognition stream: %w", err)}
			}
			return
		}
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			s.events <- recognizer.Event{Result: &recognizer.Result{
				Transcript: alt.Transcript,
				IsFinal:    r.IsFinal,
				Confidence: float64(alt.Confidence),
			}}
		}
	}
}

func isCleanClose(err error) bool {
	if err == io.EOF {
		return true
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Canceled
}
