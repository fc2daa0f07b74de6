package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postEnhance(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := New(testConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/enhance", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.EnhanceTranscript()(rec, req)
	return rec
}

func TestEnhanceTranscript(t *testing.T) {
	rec := postEnhance(t, `{
		"transcript": "ejection fraction 55%, left ventricle appears normal",
		"procedure_type": "cardiac"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Enhanced        string             `json:"enhanced_transcript"`
		Standardized    string             `json:"standardized"`
		Measurements    map[string]float64 `json:"measurements"`
		DetectedSection string             `json:"detected_section"`
		RawTranscript   string             `json:"raw_transcript"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if resp.Standardized != "EF 55%, left ventricle appears normal" {
		t.Errorf("standardized = %q", resp.Standardized)
	}
	if resp.Measurements["ejection_fraction"] != 55 {
		t.Errorf("ejection_fraction = %v, want 55", resp.Measurements["ejection_fraction"])
	}
	if resp.DetectedSection != "left ventricle" {
		t.Errorf("detected_section = %q", resp.DetectedSection)
	}
	if !strings.HasPrefix(resp.Enhanced, "[LEFT VENTRICLE] ") {
		t.Errorf("enhanced_transcript = %q, want section header", resp.Enhanced)
	}
	if resp.RawTranscript != "ejection fraction 55%, left ventricle appears normal" {
		t.Errorf("raw_transcript = %q, want input echoed", resp.RawTranscript)
	}
}

func TestEnhanceTranscriptMissingTranscript(t *testing.T) {
	for _, body := range []string{`{}`, `{"transcript": ""}`, `{"procedure_type": "cardiac"}`} {
		rec := postEnhance(t, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
		var resp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Error != "transcript is required" {
			t.Errorf("error = %q, want %q", resp.Error, "transcript is required")
		}
	}
}

func TestEnhanceTranscriptUnknownProcedure(t *testing.T) {
	rec := postEnhance(t, `{"transcript": "liver appears normal", "procedure_type": "dental"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error != "unknown procedure_type" {
		t.Errorf("error = %q, want %q", resp.Error, "unknown procedure_type")
	}

	// Omitting the field still defaults instead of failing.
	rec = postEnhance(t, `{"transcript": "liver appears normal"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status without procedure_type = %d, want 200", rec.Code)
	}
}

func TestEnhanceTranscriptBadJSON(t *testing.T) {
	rec := postEnhance(t, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEnhanceTranscriptMethodNotAllowed(t *testing.T) {
	h := New(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/enhance", nil)
	rec := httptest.NewRecorder()
	h.EnhanceTranscript()(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
