package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/yukimura/storypost/ledger"
	"github.com/yukimura/storypost/submission"
)

// StatusHandler exposes read-only views of recent runs and the
// duplicate ledger. It is the interface a review UI consumes; the UI
// itself is out of scope.
type StatusHandler struct {
	runs   *submission.RunStore
	ledger ledger.Store
	logger *slog.Logger
}

func NewStatusHandler(runs *submission.RunStore, led ledger.Store, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{runs: runs, ledger: led, logger: logger}
}

func (h *StatusHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.Recent())
}

func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, ok := h.runs.Get(vars["id"])
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *StatusHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	records, err := h.ledger.ByPlatform(r.Context(), vars["platform"])
	if err != nil {
		h.logger.Error("ledger listing failed", slog.String("error", err.Error()))
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but note it.
		slog.Default().Warn("encoding response failed", slog.String("error", err.Error()))
	}
}
