package submission

import (
	"time"

	"github.com/yukimura/storypost/platform"
)

// State names the submission state machine's positions. CONFIRMED,
// FAILED and SKIPPED_DUPLICATE are terminal.
type State string

const (
	StateInit             State = "INIT"
	StateCheckLedger      State = "CHECK_LEDGER"
	StateCompose          State = "COMPOSE"
	StateSubmit           State = "SUBMIT"
	StateVerify           State = "VERIFY"
	StateConfirmed        State = "CONFIRMED"
	StateFailed           State = "FAILED"
	StateSkippedDuplicate State = "SKIPPED_DUPLICATE"
)

// Attempt is one try at a state, retained for diagnostics only.
type Attempt struct {
	Number    int           `json:"number"`
	State     State         `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
	ErrorKind platform.Kind `json:"error_kind,omitempty"`
}

// Result is the immutable outcome of one run invocation. A FAILED
// result always carries the last state reached and the error kind, so
// an operator can judge whether a re-run is safe.
type Result struct {
	RunID       string        `json:"run_id"`
	Fingerprint string        `json:"fingerprint"`
	Platform    string        `json:"platform"`
	Language    string        `json:"language"`
	FinalState  State         `json:"final_state"`
	LastState   State         `json:"last_state"`
	ExternalID  string        `json:"external_id,omitempty"`
	Attempts    int           `json:"attempts"`
	ErrorKind   platform.Kind `json:"error_kind,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	AttemptLog  []Attempt     `json:"attempt_log,omitempty"`
}

// Succeeded reports whether the run ended in a success-adjacent state.
func (r *Result) Succeeded() bool {
	return r.FinalState == StateConfirmed || r.FinalState == StateSkippedDuplicate
}

func (r *Result) advance(state State) {
	r.LastState = state
}

func (r *Result) logAttempt(number int, state State, err error, at time.Time) {
	attempt := Attempt{Number: number, State: state, Timestamp: at}
	if err != nil {
		attempt.ErrorKind = platform.KindOf(err)
	}
	r.AttemptLog = append(r.AttemptLog, attempt)
}
