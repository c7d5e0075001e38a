package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/yukimura/storypost/ledger"
	"github.com/yukimura/storypost/submission"
)

func newTestRouter(t *testing.T, runs *submission.RunStore, led ledger.Store) *mux.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewStatusHandler(runs, led, logger)

	r := mux.NewRouter()
	r.HandleFunc("/runs", h.ListRuns).Methods("GET")
	r.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	r.HandleFunc("/ledger/{platform}", h.ListLedger).Methods("GET")
	return r
}

func TestListRuns(t *testing.T) {
	runs := submission.NewRunStore(10)
	runs.Put(&submission.Result{RunID: "r1", FinalState: submission.StateConfirmed})
	runs.Put(&submission.Result{RunID: "r2", FinalState: submission.StateFailed})
	router := newTestRouter(t, runs, ledger.NewMemoryStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []submission.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].RunID != "r2" {
		t.Errorf("runs should be newest first, got %s", got[0].RunID)
	}
}

func TestGetRun(t *testing.T) {
	runs := submission.NewRunStore(10)
	runs.Put(&submission.Result{RunID: "r1", FinalState: submission.StateConfirmed, ExternalID: "n1"})
	router := newTestRouter(t, runs, ledger.NewMemoryStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/runs/r1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got submission.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ExternalID != "n1" {
		t.Errorf("unexpected run: %+v", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/runs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown run, got %d", rec.Code)
	}
}

func TestListLedger(t *testing.T) {
	led := ledger.NewMemoryStore()
	if _, err := led.MarkDrafted(context.Background(), "fp1", "note", "n100"); err != nil {
		t.Fatal(err)
	}
	router := newTestRouter(t, submission.NewRunStore(10), led)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ledger/note", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []ledger.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExternalID != "n100" {
		t.Errorf("unexpected records: %+v", got)
	}

	// An empty platform renders an empty array, not null.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ledger/other", nil))
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("expected empty array, got %q", body)
	}
}
