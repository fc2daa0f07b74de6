package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/sonoscribe/dictation-gateway/internal/enhance"
	"github.com/sonoscribe/dictation-gateway/internal/observability"
)

// enhanceRequest is the batch enhancement request body.
type enhanceRequest struct {
	Transcript    string `json:"transcript"`
	ProcedureType string `json:"procedure_type"`
	Language      string `json:"language"`
}

// enhanceResponse extends the pipeline result with the raw input so clients
// can diff what changed.
type enhanceResponse struct {
	*enhance.Result
	RawTranscript string `json:"raw_transcript"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// EnhanceTranscript handles POST /api/enhance.
func (h *Handler) EnhanceTranscript() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		var req enhanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			observability.RecordEnhancement("invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Transcript == "" {
			observability.RecordEnhancement("invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "transcript is required"})
			return
		}
		if req.ProcedureType != "" && !enhance.KnownProcedure(req.ProcedureType) {
			observability.RecordEnhancement("invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown procedure_type"})
			return
		}

		result := enhance.Enhance(enhance.Request{
			Transcript:    req.Transcript,
			ProcedureType: req.ProcedureType,
			Language:      req.Language,
		})

		observability.RecordEnhancement("success")
		writeJSON(w, http.StatusOK, enhanceResponse{
			Result:        result,
			RawTranscript: req.Transcript,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
