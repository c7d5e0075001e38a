// Package submission orchestrates the compose→submit→verify sequence
// as a state machine with retry, duplicate prevention and ambiguity
// recovery. All browser work happens behind blocking Surface calls, so
// the machine itself carries no concurrency primitives.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yukimura/storypost/ledger"
	"github.com/yukimura/storypost/platform"
	"github.com/yukimura/storypost/session"
	"github.com/yukimura/storypost/story"
)

// Composer injects a document into an open surface without submitting.
type Composer interface {
	Compose(ctx context.Context, surf platform.Surface, doc story.Document) error
}

// Sessions is the slice of the session manager the controller uses.
type Sessions interface {
	Acquire(ctx context.Context, platformName, credentialRef string) (*session.Session, error)
	Release(ctx context.Context, sess *session.Session) error
	Reacquire(ctx context.Context, sess *session.Session) (*session.Session, error)
}

// Notifier is told about terminal failures. Implementations must not block long.
type Notifier interface {
	SubmissionFailed(ctx context.Context, res *Result)
}

// Options tune the retry and verification policy.
type Options struct {
	RetryLimit   int           // attempts across compose and submit, default 3
	BackoffBase  time.Duration // default 1s
	BackoffCap   time.Duration // default 30s
	Budget       time.Duration // wall clock for the whole submission, default 5m
	VerifyPolls  int           // drafts-listing polls per verification, default 3
	VerifyWindow time.Duration // recency tolerance for the title match, default 15m
}

func (o Options) withDefaults() Options {
	if o.RetryLimit <= 0 {
		o.RetryLimit = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 30 * time.Second
	}
	if o.Budget <= 0 {
		o.Budget = 5 * time.Minute
	}
	if o.VerifyPolls <= 0 {
		o.VerifyPolls = 3
	}
	if o.VerifyWindow <= 0 {
		o.VerifyWindow = 15 * time.Minute
	}
	return o
}

// Controller runs the submission state machine for one document at a
// time. It is safe for concurrent use; same-account runs serialize on
// the session manager's lock and the ledger write is a compare-and-set.
type Controller struct {
	sessions Sessions
	composer Composer
	ledger   ledger.Store
	runs     *RunStore
	notifier Notifier
	logger   *slog.Logger
	opts     Options
	backoff  Backoff

	// Both are swapped out by tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewController(sessions Sessions, comp Composer, led ledger.Store, runs *RunStore, notifier Notifier, logger *slog.Logger, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		sessions: sessions,
		composer: comp,
		ledger:   led,
		runs:     runs,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		backoff:  Backoff{Base: opts.BackoffBase, Factor: 2, Cap: opts.BackoffCap},
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Submit runs the full state machine for doc against a platform
// account. The returned error is reserved for infrastructure faults
// (ledger I/O); every submission outcome, including FAILED, is
// reported through the Result.
func (c *Controller) Submit(ctx context.Context, platformName, credentialRef string, doc story.Document) (*Result, error) {
	res := &Result{
		RunID:       uuid.NewString(),
		Fingerprint: doc.Fingerprint(),
		Platform:    platformName,
		Language:    doc.Language,
		FinalState:  StateInit,
		LastState:   StateInit,
		StartedAt:   c.now(),
	}
	defer func() {
		res.FinishedAt = c.now()
		if c.runs != nil {
			c.runs.Put(res)
		}
		c.logger.Info("submission finished",
			slog.String("run_id", res.RunID),
			slog.String("fingerprint", res.Fingerprint),
			slog.String("final_state", string(res.FinalState)),
			slog.Int("attempts", res.Attempts))
	}()

	// CHECK_LEDGER: both guards fire before any browser interaction.
	res.advance(StateCheckLedger)
	if len(doc.Blocks) == 0 {
		return c.fail(ctx, res, platform.Errorf(platform.KindValidation, "submission.check",
			"document %s has an empty body", res.Fingerprint), false), nil
	}
	rec, err := c.ledger.Find(ctx, res.Fingerprint, platformName)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	if rec != nil && rec.Status == ledger.StatusDrafted {
		res.ExternalID = rec.ExternalID
		res.FinalState = StateSkippedDuplicate
		return res, nil
	}

	sess, err := c.sessions.Acquire(ctx, platformName, credentialRef)
	if err != nil {
		return c.fail(ctx, res, err, true), nil
	}
	defer func() {
		if rerr := c.sessions.Release(context.WithoutCancel(ctx), sess); rerr != nil {
			c.logger.Warn("session release failed", slog.String("error", rerr.Error()))
		}
	}()

	deadline := res.StartedAt.Add(c.opts.Budget)
	attempts := 0
	loginRedirects := 0

	// COMPOSE, retried with backoff. A repeated bounce to the login
	// page means the persisted session went stale mid-run: re-acquire.
	for {
		if err := c.transitionGate(ctx, deadline); err != nil {
			return c.fail(ctx, res, err, true), nil
		}
		attempts++
		res.Attempts = attempts
		res.advance(StateCompose)
		err := c.composer.Compose(ctx, sess.Surface, doc)
		res.logAttempt(attempts, StateCompose, err, c.now())
		if err == nil {
			break
		}
		kind := platform.KindOf(err)
		c.logger.Warn("compose attempt failed",
			slog.Int("attempt", attempts),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		if !platform.Retryable(kind) {
			return c.fail(ctx, res, err, true), nil
		}
		if attempts >= c.opts.RetryLimit {
			return c.fail(ctx, res, err, true), nil
		}
		if errors.Is(err, platform.ErrLoginRedirect) {
			loginRedirects++
			if loginRedirects >= 2 {
				fresh, rerr := c.sessions.Reacquire(ctx, sess)
				if rerr != nil {
					return c.fail(ctx, res, rerr, true), nil
				}
				sess = fresh
				loginRedirects = 0
			}
		}
		if serr := c.sleep(ctx, c.backoff.DelayFor(kind, attempts)); serr != nil {
			return c.fail(ctx, res, platform.E(platform.KindNetwork, "submission.backoff", serr), true), nil
		}
	}

	// SUBMIT → VERIFY. A submit failure is ambiguous (the draft may
	// exist server-side), so verification always follows, even when
	// the run has been cancelled in the meantime.
	for {
		if err := c.transitionGate(ctx, deadline); err != nil {
			return c.fail(ctx, res, err, true), nil
		}
		res.advance(StateSubmit)
		submitErr := sess.Surface.SaveDraft(ctx)
		res.logAttempt(attempts, StateSubmit, submitErr, c.now())
		if submitErr != nil {
			c.logger.Warn("draft save ambiguous, verifying",
				slog.Int("attempt", attempts),
				slog.String("error", submitErr.Error()))
			if platform.KindOf(submitErr) == platform.KindAuth {
				return c.fail(ctx, res, submitErr, true), nil
			}
		}

		res.advance(StateVerify)
		entry, found := c.verify(context.WithoutCancel(ctx), sess.Surface, doc, res.StartedAt)
		if found {
			return c.confirm(context.WithoutCancel(ctx), res, entry)
		}

		if attempts >= c.opts.RetryLimit {
			lastErr := submitErr
			if lastErr == nil {
				lastErr = platform.Errorf(platform.KindNetwork, "submission.verify",
					"draft not found after %d verification polls", c.opts.VerifyPolls)
			}
			return c.fail(ctx, res, lastErr, true), nil
		}
		attempts++
		res.Attempts = attempts
		kind := platform.KindNetwork
		if submitErr != nil {
			kind = platform.KindOf(submitErr)
		}
		if serr := c.sleep(ctx, c.backoff.DelayFor(kind, attempts)); serr != nil {
			return c.fail(ctx, res, platform.E(platform.KindNetwork, "submission.backoff", serr), true), nil
		}
	}
}

// verify polls the drafts listing for an entry matching the document
// title and a recency window. The heuristic trades a small false
// positive risk (a pre-existing identically titled draft is adopted)
// for never reporting FAILED when a draft actually exists.
func (c *Controller) verify(ctx context.Context, surf platform.Surface, doc story.Document, since time.Time) (platform.DraftEntry, bool) {
	cutoff := since.Add(-c.opts.VerifyWindow)
	for poll := 0; poll < c.opts.VerifyPolls; poll++ {
		if poll > 0 {
			if err := c.sleep(ctx, c.backoff.Delay(poll)); err != nil {
				break
			}
		}
		entries, err := surf.ListDrafts(ctx)
		if err != nil {
			c.logger.Warn("drafts listing failed during verify", slog.String("error", err.Error()))
			continue
		}
		for _, entry := range entries {
			if entry.Title != doc.Title {
				continue
			}
			// Listings without timestamps still match on title alone.
			if !entry.UpdatedAt.IsZero() && entry.UpdatedAt.Before(cutoff) {
				continue
			}
			return entry, true
		}
	}
	return platform.DraftEntry{}, false
}

// confirm writes the ledger record. This is the commit point: once the
// write lands, every later duplicate check sees it.
func (c *Controller) confirm(ctx context.Context, res *Result, entry platform.DraftEntry) (*Result, error) {
	rec, err := c.ledger.MarkDrafted(ctx, res.Fingerprint, res.Platform, entry.ExternalID)
	if err != nil && !errors.Is(err, ledger.ErrDuplicate) {
		return nil, err
	}
	if errors.Is(err, ledger.ErrDuplicate) {
		// A concurrent pipeline committed first; adopt its record.
		c.logger.Warn("commit race lost, adopting existing record",
			slog.String("fingerprint", res.Fingerprint))
	}
	res.ExternalID = rec.ExternalID
	res.FinalState = StateConfirmed
	return res, nil
}

// fail finalizes a terminal failure, preserving the last error kind
// and state reached. The ledger gets a FAILED row for diagnostics
// unless the run never got past validation.
func (c *Controller) fail(ctx context.Context, res *Result, cause error, record bool) *Result {
	res.ErrorKind = platform.KindOf(cause)
	res.FinalState = StateFailed
	c.logger.Error("submission failed",
		slog.String("fingerprint", res.Fingerprint),
		slog.String("last_state", string(res.LastState)),
		slog.String("kind", string(res.ErrorKind)),
		slog.String("error", cause.Error()))
	if record {
		if _, err := c.ledger.MarkFailed(context.WithoutCancel(ctx), res.Fingerprint, res.Platform); err != nil {
			c.logger.Warn("recording failure in ledger failed", slog.String("error", err.Error()))
		}
	}
	if c.notifier != nil {
		c.notifier.SubmissionFailed(context.WithoutCancel(ctx), res)
	}
	return res
}

// transitionGate enforces cancellation and the wall-clock budget at
// state transition boundaries only.
func (c *Controller) transitionGate(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return platform.E(platform.KindNetwork, "submission.cancelled", err)
	}
	if c.now().After(deadline) {
		return platform.Errorf(platform.KindNetwork, "submission.budget", "wall-clock budget exceeded")
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
