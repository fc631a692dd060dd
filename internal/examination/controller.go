package examination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/examkit/session-runtime/internal/metrics"
)

// State is the lifecycle position of a session.
type State string

const (
	StateStarting   State = "starting"
	StateActive     State = "active"
	StateTimingOut  State = "timing-out"
	StateSubmitting State = "submitting"
	StateAborting   State = "aborting"
	StateLoggedOut  State = "logged-out"
)

var (
	// ErrSessionEnded reports an operation on a session that has left
	// the active state.
	ErrSessionEnded = errors.New("session is not active")
	// ErrInvalidTransition reports a navigation beyond the page bounds.
	ErrInvalidTransition = errors.New("invalid page transition")
)

// ControllerConfig groups the controller's timing knobs.
type ControllerConfig struct {
	Clock            ClockConfig
	AutosaveInterval time.Duration
	// LogoutTimeout bounds the flush+handshake work of a termination.
	LogoutTimeout time.Duration
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = time.Minute
	}
	if c.LogoutTimeout <= 0 {
		c.LogoutTimeout = time.Minute
	}
	return c
}

// StartRequest identifies the session to start.
type StartRequest struct {
	Hash          string
	ExamID        int64
	Preview       bool
	Collaborative bool
}

// Controller owns the session: it starts it, routes every termination
// trigger (timeout, submit, abort) through a single exactly-once path,
// and drives section navigation with its flush-before-leave rule.
type Controller struct {
	backend  Backend
	router   Router
	notifier Notifier
	cfg      ControllerConfig
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	ended   bool // session-scoped unload guard
	preview bool
	session *Session
	store   *Store
	nav     *Navigator
	clock   *Clock

	runCtx         context.Context
	runCancel      context.CancelFunc
	autosaveCancel context.CancelFunc
}

// NewController wires a controller against a backend and the embedding
// UI's router/notifier.
func NewController(backend Backend, router Router, notifier Notifier, cfg ControllerConfig, logger zerolog.Logger) *Controller {
	return &Controller{
		backend:  backend,
		router:   router,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "session_controller").Logger(),
	}
}

// Start fetches the session, resolves a cloned payload onto its
// canonical per-student handle, fixes the route prefix, and starts the
// clock. The session begins on the guide page.
func (c *Controller) Start(ctx context.Context, req StartRequest) error {
	c.mu.Lock()
	if c.state != "" {
		c.mu.Unlock()
		return fmt.Errorf("session already started (state %s)", c.state)
	}
	c.state = StateStarting
	c.preview = req.Preview
	c.mu.Unlock()

	// Collaborative sessions run through the interoperability prefix
	// from the very first fetch.
	if req.Collaborative {
		c.backend.UseExternalPaths()
	}

	session, err := c.fetch(ctx, req)
	if err != nil {
		c.mu.Lock()
		c.state = ""
		c.mu.Unlock()
		return fmt.Errorf("start session: %w", err)
	}

	if session.External {
		c.backend.UseExternalPaths()
	}

	if session.Cloned {
		// The request carried the parent exam's handle; a per-student
		// copy was created on first access. Reload through the canonical
		// handle so concurrent tabs cannot diverge on the parent.
		c.logger.Info().Str("hash", session.Hash).Msg("cloned session, reloading student copy")
		session, err = c.backend.FetchSession(ctx, session.Hash)
		if err != nil {
			c.mu.Lock()
			c.state = ""
			c.mu.Unlock()
			return fmt.Errorf("reload cloned session: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.store = NewStore(session, c.backend, c.notifier, req.Preview, c.logger)
	c.nav = NewNavigator(session)
	c.runCtx, c.runCancel = context.WithCancel(context.Background())

	if !req.Preview {
		c.clock = NewClock(c.backend, session.Hash, c.cfg.Clock, c.logger)
		go func() { _ = c.clock.Run(c.runCtx) }()
		go c.watchTimeout()
	}

	c.state = StateActive
	c.logger.Info().
		Str("hash", session.Hash).
		Int("sections", len(session.Sections)).
		Bool("preview", req.Preview).
		Msg("session started")
	return nil
}

func (c *Controller) fetch(ctx context.Context, req StartRequest) (*Session, error) {
	if req.Preview && req.ExamID != 0 {
		return c.backend.FetchPreview(ctx, req.ExamID)
	}
	return c.backend.FetchSession(ctx, req.Hash)
}

// Session returns the loaded session.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Store returns the answer capture store.
func (c *Controller) Store() *Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Navigator returns the page machine.
func (c *Controller) Navigator() *Navigator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav
}

// Clock returns the time synchronizer; nil in preview mode.
func (c *Controller) Clock() *Clock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NextPage moves to the linear successor of the current page.
func (c *Controller) NextPage(ctx context.Context) error {
	return c.transition(ctx, func() Transition { return c.nav.Next() })
}

// PrevPage moves to the linear predecessor of the current page.
func (c *Controller) PrevPage(ctx context.Context) error {
	return c.transition(ctx, func() Transition { return c.nav.Prev() })
}

// SelectPage jumps to the page at index; the guide is index zero.
func (c *Controller) SelectPage(ctx context.Context, index int) error {
	return c.transition(ctx, func() Transition { return c.nav.Select(index) })
}

// SelectSection jumps to the page of the given section.
func (c *Controller) SelectSection(ctx context.Context, sectionID int64) error {
	return c.transition(ctx, func() Transition { return c.nav.SelectSection(sectionID) })
}

// transition runs the flush-before-leave rule: the leaving section's
// autosave timer is cancelled and its dirty textual answers flushed
// before the move is applied and the new section's timer armed.
func (c *Controller) transition(ctx context.Context, propose func() Transition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.ended {
		return ErrSessionEnded
	}

	t := propose()
	if !t.Valid {
		return ErrInvalidTransition
	}

	c.stopAutosaveLocked()
	if t.LeftSectionID != 0 {
		// Best effort: a failed flush leaves the answers dirty for the
		// next save, it must not trap the user on the page.
		_ = c.store.SaveAllTextualOfSection(ctx, t.LeftSectionID, FlushOptions{
			Autosave: true,
			CanFail:  true,
		})
	}
	c.nav.Apply(t)
	if t.To.Type == PageSection {
		c.armAutosaveLocked(t.To.SectionID)
	}
	return nil
}

// Submit turns the exam: every textual answer is flushed (failures are
// logged, the turn proceeds regardless) and the logout handshake runs.
// A failed handshake surfaces the error and the session stays active for
// a retry.
func (c *Controller) Submit(ctx context.Context) error {
	if !c.beginTermination(StateSubmitting) {
		return ErrSessionEnded
	}

	_ = c.store.SaveAllTextual(ctx, FlushOptions{AllowEmpty: true, CanFail: true})

	if err := c.logout(ctx, "exam returned", false); err != nil {
		c.resumeActive()
		return err
	}
	metrics.TerminationsTotal.WithLabelValues("finished").Inc()
	return nil
}

// Abort discards the attempt. The abort call is not best-effort: on
// failure the session stays active and no logout navigation happens.
func (c *Controller) Abort(ctx context.Context) error {
	if !c.beginTermination(StateAborting) {
		return ErrSessionEnded
	}

	if err := c.backend.Abort(ctx, c.session.Hash); err != nil {
		c.notifier.Error("aborting the exam failed")
		c.resumeActive()
		return fmt.Errorf("abort exam: %w", err)
	}

	metrics.TerminationsTotal.WithLabelValues("aborted").Inc()
	c.notifier.Info("exam aborted")
	c.endSession()
	c.router.Navigate(ReasonAborted, c.session.QuitLinkEnabled())
	return nil
}

// watchTimeout binds the clock's one-shot signal to the termination path.
func (c *Controller) watchTimeout() {
	select {
	case <-c.runCtx.Done():
		return
	case <-c.clock.Timeout():
	}
	c.onTimeout()
}

// onTimeout flushes every textual answer best-effort, then logs out.
// The logout runs regardless of the flush outcome, and its own failure
// is swallowed so an expired session cannot trap the student.
func (c *Controller) onTimeout() {
	if !c.beginTermination(StateTimingOut) {
		return
	}
	metrics.TerminationsTotal.WithLabelValues("timeout").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LogoutTimeout)
	defer cancel()
	defer func() {
		_ = c.logout(ctx, "time is up, exam returned", true)
	}()

	_ = c.store.SaveAllTextual(ctx, FlushOptions{AllowEmpty: true, CanFail: true})
}

// resumeActive returns the controller to the active state after a failed
// termination. beginTermination stopped the autosave timer, so it is
// re-armed for the section still on screen.
func (c *Controller) resumeActive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateActive
	if p := c.nav.Current(); p.Type == PageSection {
		c.armAutosaveLocked(p.SectionID)
	}
}

// beginTermination is the exactly-once gate out of the active state.
func (c *Controller) beginTermination(next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.ended {
		return false
	}
	c.state = next
	c.stopAutosaveLocked()
	return true
}

// logout runs the end-of-session handshake. With canFail the student is
// navigated away even when the backend call errors.
func (c *Controller) logout(ctx context.Context, msg string, canFail bool) error {
	err := c.backend.Finish(ctx, c.session.Hash)
	if err != nil {
		if !canFail {
			c.notifier.Error("ending the exam failed")
			return fmt.Errorf("end session: %w", err)
		}
		c.logger.Warn().Err(err).Msg("end-of-session call failed, navigating anyway")
	}
	c.notifier.Info(msg)
	c.endSession()
	c.router.Navigate(ReasonFinished, c.session.QuitLinkEnabled())
	return nil
}

// endSession flips the unload guard and stops all background work.
func (c *Controller) endSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = true
	c.state = StateLoggedOut
	c.stopAutosaveLocked()
	if c.runCancel != nil {
		c.runCancel()
	}
}

// Close stops the background work without terminating the session
// server-side; the embedding process uses it on shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAutosaveLocked()
	if c.runCancel != nil {
		c.runCancel()
	}
}

// armAutosaveLocked starts the periodic best-effort save of the active
// section. Only one timer exists at a time; arming replaces the previous
// one and always happens after the leaving section's flush settled.
func (c *Controller) armAutosaveLocked(sectionID int64) {
	ctx, cancel := context.WithCancel(c.runCtx)
	c.autosaveCancel = cancel
	interval := c.cfg.AutosaveInterval
	store := c.store
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = store.SaveAllTextualOfSection(ctx, sectionID, FlushOptions{
					Autosave: true,
					CanFail:  true,
				})
			}
		}
	}()
}

func (c *Controller) stopAutosaveLocked() {
	if c.autosaveCancel != nil {
		c.autosaveCancel()
		c.autosaveCancel = nil
	}
}
