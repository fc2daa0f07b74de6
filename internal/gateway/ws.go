// Package gateway exposes the service over HTTP: a websocket endpoint for
// live dictation and a JSON endpoint for batch transcript enhancement.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sonoscribe/dictation-gateway/internal/config"
	"github.com/sonoscribe/dictation-gateway/internal/enhance"
	"github.com/sonoscribe/dictation-gateway/internal/observability"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer"
	"github.com/sonoscribe/dictation-gateway/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are left to the reverse proxy.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler serves the gateway endpoints. backend may be nil when no provider
// is configured; sessions then report a configuration error on start.
type Handler struct {
	cfg     *config.Config
	backend recognizer.Backend
	log     zerolog.Logger
}

// New creates a gateway handler.
func New(cfg *config.Config, backend recognizer.Backend) *Handler {
	return &Handler{
		cfg:     cfg,
		backend: backend,
		log:     observability.WithComponent("gateway"),
	}
}

// clientMessage is a control frame from the client.
type clientMessage struct {
	Event        string `json:"event"`
	LanguageCode string `json:"languageCode,omitempty"`
	SampleRate   int    `json:"sampleRate,omitempty"`
}

// wsEmitter writes session events as JSON frames. gorilla/websocket allows
// one concurrent writer, so all writes go through a mutex.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  zerolog.Logger
}

func (e *wsEmitter) send(v interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.WriteJSON(v); err != nil {
		e.log.Debug().Err(err).Msg("failed to write event to client")
	}
}

type lifecycleEvent struct {
	Event string `json:"event"`
}

type transcriptEvent struct {
	Event      string  `json:"event"`
	Transcript string  `json:"transcript"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence,omitempty"`
}

type errorEvent struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

type enhancedEvent struct {
	Event  string          `json:"event"`
	Result *enhance.Result `json:"result"`
}

func (e *wsEmitter) StreamingStarted() {
	e.send(lifecycleEvent{Event: "streaming-started"})
}

func (e *wsEmitter) StreamingTranscript(ev session.TranscriptEvent) {
	e.send(transcriptEvent{
		Event:      "streaming-transcript",
		Transcript: ev.Transcript,
		IsFinal:    ev.IsFinal,
		Confidence: ev.Confidence,
	})
}

func (e *wsEmitter) TranscriptEnhanced(res *enhance.Result) {
	e.send(enhancedEvent{Event: "transcript-enhanced", Result: res})
}

func (e *wsEmitter) StreamingError(message string) {
	e.send(errorEvent{Event: "streaming-error", Error: message})
}

func (e *wsEmitter) StreamingStopped() {
	e.send(lifecycleEvent{Event: "streaming-stopped"})
}

// DictationWS upgrades the connection and runs one dictation session until
// the client goes away. Text frames carry JSON control messages, binary
// frames carry raw audio.
func (h *Handler) DictationWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		emitter := &wsEmitter{conn: conn, log: h.log}
		sess := session.New(h.backend, emitter, session.Options{
			EnhanceFinals: h.cfg.EnhanceFinals,
			ProcedureType: enhance.DefaultProcedure,
		})
		defer sess.Disconnect()

		metrics := observability.NewSessionMetrics(sess.ID())
		metrics.RecordSessionStart()
		defer metrics.RecordSessionEnd()

		log := observability.WithSession(sess.ID())
		log.Info().Str("remote", r.RemoteAddr).Msg("dictation connection opened")
		defer log.Info().Msg("dictation connection closed")

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Msg("connection read failed")
				}
				return
			}

			switch msgType {
			case websocket.BinaryMessage:
				if err := sess.Audio(data); err != nil {
					log.Debug().Err(err).Msg("audio forwarding failed")
				}

			case websocket.TextMessage:
				h.handleControl(r, sess, data, log)
			}
		}
	}
}

func (h *Handler) handleControl(r *http.Request, sess *session.Session, data []byte, log zerolog.Logger) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Msg("ignoring malformed control message")
		return
	}

	switch msg.Event {
	case "start-streaming":
		cfg := session.StartConfig{
			LanguageCode:    msg.LanguageCode,
			SampleRateHertz: msg.SampleRate,
		}
		if cfg.LanguageCode == "" {
			cfg.LanguageCode = h.cfg.DefaultLanguageCode
		}
		if cfg.SampleRateHertz == 0 {
			cfg.SampleRateHertz = h.cfg.DefaultSampleRate
		}
		if err := sess.Start(r.Context(), cfg); err != nil {
			// Configuration and open failures already produced an error
			// event; state violations are only logged.
			log.Debug().Err(err).Msg("start-streaming rejected")
		}

	case "stop-streaming":
		if err := sess.Stop(); err != nil {
			log.Debug().Err(err).Msg("stop-streaming failed")
		}

	default:
		log.Debug().Str("event", msg.Event).Msg("ignoring unknown control event")
	}
}
