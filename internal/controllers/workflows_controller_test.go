package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hireflow/hireflow/internal/engine"
)

func TestWriteEngineError_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: workflow 7", engine.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: candidate cand-1", engine.ErrDuplicateActive), http.StatusConflict},
		{fmt.Errorf("%w: no transition", engine.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("%w: interviewer busy", engine.ErrScheduleConflict), http.StatusConflict},
		{fmt.Errorf("%w: start from pending", engine.ErrInterviewStatus), http.StatusConflict},
		{fmt.Errorf("%w: no terminal state", engine.ErrTemplateInvalid), http.StatusBadRequest},
		{errors.New("database exploded"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeEngineError(rec, c.err)
		if rec.Code != c.want {
			t.Errorf("writeEngineError(%v) = %d, want %d", c.err, rec.Code, c.want)
		}
	}
}

func TestPathID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/42", nil)
	r.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	id, ok := pathID(rec, r)
	if !ok || id != 42 {
		t.Fatalf("expected id 42, got %d ok=%v", id, ok)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/workflows/abc", nil)
	r.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	if _, ok := pathID(rec, r); ok {
		t.Fatal("expected failure for a non-numeric id")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
