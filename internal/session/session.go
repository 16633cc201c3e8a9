package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State enumerates the session lifecycle. Transitions only move forward,
// except that a recoverable submit failure returns Submitting to Running.
type State string

const (
	StateUninitialized    State = "UNINITIALIZED"
	StateReconciling      State = "RECONCILING"
	StateRunning          State = "RUNNING"
	StateSubmitting       State = "SUBMITTING"
	StateTerminated       State = "TERMINATED"
	StateAlreadySubmitted State = "ALREADY_SUBMITTED"
)

// SaveStatus is the observational indicator for the debounced remote save.
// It never blocks edits.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

const (
	defaultDebounceWindow = 2 * time.Second
	savedRevertAfter      = 2 * time.Second
	errorRevertAfter      = 3 * time.Second
)

var (
	// ErrNotRunning is returned when an operation needs an active session.
	ErrNotRunning = errors.New("session is not running")
	// ErrSubmitInFlight is returned when a submit is already in progress
	// or has completed; the latch never reopens on the success path.
	ErrSubmitInFlight = errors.New("submission already in flight or completed")
)

// Config wires a Controller to its collaborators. Store and API are
// required; Clock defaults to the system clock.
type Config struct {
	StudentID        int
	MaterialID       string
	QuizID           string
	TimeLimitMinutes int

	Store Store
	API   API
	Clock Clock

	// DebounceWindow is the quiescence interval before a remote draft
	// save. Zero means the 2-second default.
	DebounceWindow time.Duration

	// Observational callbacks. All are optional and are invoked without
	// internal locks held; implementations must not call back into the
	// Controller synchronously from OnStateChange.
	OnStateChange func(State)
	OnTick        func(remainingSeconds int)
	OnSaveStatus  func(SaveStatus)
	OnSubmitError func(error)
}

// Controller coordinates one timed quiz-taking session: reconciling cached
// and remote draft state on start, debouncing draft saves, counting down a
// wall-clock deadline, and guarding the terminal submission.
type Controller struct {
	cfg   Config
	clock Clock

	mu            sync.Mutex
	state         State
	answers       map[string]string
	startMillis   int64
	remaining     int
	dirty         bool
	submitLatch   bool
	closed        bool
	submissionID  string
	saveStatus    SaveStatus
	tickTimer     Timer
	debounceTimer Timer
	revertTimer   Timer
}

// New creates a Controller in the Uninitialized state. Call Start to load
// and reconcile progress.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: Store is required")
	}
	if cfg.API == nil {
		return nil, errors.New("session: API is required")
	}
	if cfg.MaterialID == "" {
		return nil, errors.New("session: MaterialID is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = defaultDebounceWindow
	}

	return &Controller{
		cfg:        cfg,
		clock:      cfg.Clock,
		state:      StateUninitialized,
		answers:    make(map[string]string),
		saveStatus: SaveIdle,
	}, nil
}

// Start reconciles local cache with the remote draft and, for timed
// materials, initializes the deadline countdown. A remote fetch failure
// degrades to cache-only; it never fails the start.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return errors.New("session: already started")
	}
	c.setStateLocked(StateReconciling)
	c.mu.Unlock()

	local := loadCachedAnswers(c.cfg.Store, c.cfg.MaterialID)

	progress, err := c.cfg.API.GetProgress(ctx, c.cfg.StudentID, c.cfg.MaterialID)
	if err != nil {
		// Degrade to cache-only. The next debounce cycle pushes it back.
		progress = nil
	}

	if progress != nil && progress.AlreadySubmitted {
		c.mu.Lock()
		c.submissionID = progress.SubmissionID
		c.setStateLocked(StateAlreadySubmitted)
		c.mu.Unlock()
		return nil
	}

	adopted := local
	if progress != nil && progress.Draft != nil {
		// Remote wins on a tie so both stores converge on the synced set.
		if countAnswered(progress.Draft.Answers) >= countAnswered(local) {
			adopted = progress.Draft.Answers
		}
		storeAnswers(c.cfg.Store, c.cfg.MaterialID, adopted)

		if _, ok := loadCachedStartTime(c.cfg.Store, c.cfg.MaterialID); !ok && progress.Draft.StartTime > 0 {
			storeStartTime(c.cfg.Store, c.cfg.MaterialID, progress.Draft.StartTime)
		}
	}
	if adopted == nil {
		adopted = make(map[string]string)
	}

	c.mu.Lock()
	c.answers = adopted
	c.mu.Unlock()

	return c.initTimer()
}

// initTimer runs the Uninitialized→Running transition of the deadline
// machine once reconciliation has produced the answer set.
func (c *Controller) initTimer() error {
	if c.cfg.TimeLimitMinutes <= 0 {
		// Untimed material: no deadline machine, explicit submit only.
		c.mu.Lock()
		c.setStateLocked(StateRunning)
		c.mu.Unlock()
		return nil
	}

	// The one true session-start event: persisted exactly once, never
	// advanced, so elapsed time is monotonic across reloads.
	startMillis, ok := loadCachedStartTime(c.cfg.Store, c.cfg.MaterialID)
	if !ok {
		startMillis = c.clock.Now().UnixMilli()
		storeStartTime(c.cfg.Store, c.cfg.MaterialID, startMillis)
	}

	elapsed := int(c.clock.Now().UnixMilli()-startMillis) / 1000
	remaining := c.cfg.TimeLimitMinutes*60 - elapsed

	c.mu.Lock()
	c.startMillis = startMillis

	if remaining <= 0 {
		// Reopened an expired session: no countdown phase, straight to
		// forced submission.
		c.remaining = 0
		c.setStateLocked(StateRunning)
		c.mu.Unlock()
		return c.submit(context.Background())
	}

	c.remaining = remaining
	c.setStateLocked(StateRunning)
	c.tickTimer = c.clock.AfterFunc(time.Second, c.onTick)
	c.mu.Unlock()
	return nil
}

func (c *Controller) onTick() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.remaining--
	remaining := c.remaining
	expired := remaining <= 0
	if !expired {
		c.tickTimer = c.clock.AfterFunc(time.Second, c.onTick)
	}
	onTick := c.cfg.OnTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired {
		// The latch inside submit makes a racing manual click harmless.
		_ = c.submit(context.Background())
	}
}

// SetAnswer records an answer edit: the local cache is written
// synchronously, and a remote draft save is scheduled on a trailing-edge
// debounce. Edits outside the Running state are rejected.
func (c *Controller) SetAnswer(questionID, answer string) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}

	c.answers[questionID] = answer
	storeAnswers(c.cfg.Store, c.cfg.MaterialID, c.answers)
	c.dirty = true

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = c.clock.AfterFunc(c.cfg.DebounceWindow, c.flushDebounced)
	c.mu.Unlock()
	return nil
}

// flushDebounced is the trailing edge of the debounce window: it pushes
// the full current answer set to the remote draft endpoint.
func (c *Controller) flushDebounced() {
	c.mu.Lock()
	if c.state != StateRunning || !c.dirty {
		c.mu.Unlock()
		return
	}
	c.dirty = false
	save := c.buildDraftSaveLocked()
	c.setSaveStatusLocked(SaveSaving)
	c.mu.Unlock()

	err := c.cfg.API.SaveDraft(context.Background(), save)

	c.mu.Lock()
	if err != nil {
		// Retried on the next edit's debounce cycle; the local cache is
		// the durable source of truth meanwhile.
		c.dirty = true
		c.setSaveStatusLocked(SaveError)
		c.scheduleRevertLocked(errorRevertAfter)
	} else {
		c.setSaveStatusLocked(SaveSaved)
		c.scheduleRevertLocked(savedRevertAfter)
	}
	c.mu.Unlock()
}

func (c *Controller) buildDraftSaveLocked() *DraftSave {
	startMillis, ok := loadCachedStartTime(c.cfg.Store, c.cfg.MaterialID)
	if !ok {
		startMillis = c.clock.Now().UnixMilli()
	}
	return &DraftSave{
		StudentID:  c.cfg.StudentID,
		MaterialID: c.cfg.MaterialID,
		QuizID:     c.cfg.QuizID,
		Answers:    copyAnswers(c.answers),
		StartTime:  startMillis,
	}
}

func (c *Controller) scheduleRevertLocked(after time.Duration) {
	if c.revertTimer != nil {
		c.revertTimer.Stop()
	}
	c.revertTimer = c.clock.AfterFunc(after, func() {
		c.mu.Lock()
		c.setSaveStatusLocked(SaveIdle)
		c.mu.Unlock()
	})
}

// Submit performs the explicit terminal submission. Timer expiry takes the
// same path internally, so the latch covers every trigger.
func (c *Controller) Submit(ctx context.Context) error {
	return c.submit(ctx)
}

func (c *Controller) submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateTerminated || c.state == StateAlreadySubmitted {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	if c.submitLatch {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.submitLatch = true

	// The submission payload supersedes any pending draft save.
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.dirty = false

	sub := &Submission{
		StudentID:  c.cfg.StudentID,
		MaterialID: c.cfg.MaterialID,
		QuizID:     c.cfg.QuizID,
		Answers:    copyAnswers(c.answers),
	}
	c.setStateLocked(StateSubmitting)
	c.mu.Unlock()

	result, err := c.cfg.API.SubmitQuiz(ctx, sub)

	var conflict *ConflictError
	switch {
	case err == nil:
		c.mu.Lock()
		clearCache(c.cfg.Store, c.cfg.MaterialID)
		c.submissionID = result.SubmissionID
		c.stopTimersLocked()
		c.setStateLocked(StateTerminated)
		c.mu.Unlock()

		// Best-effort cleanup, never on the critical path.
		go func() {
			_ = c.cfg.API.DeleteDraft(context.Background(), c.cfg.StudentID, c.cfg.MaterialID)
		}()
		return nil

	case errors.As(err, &conflict):
		// Another path already submitted: terminal success-equivalent.
		c.mu.Lock()
		clearCache(c.cfg.Store, c.cfg.MaterialID)
		c.submissionID = conflict.SubmissionID
		c.stopTimersLocked()
		c.setStateLocked(StateAlreadySubmitted)
		c.mu.Unlock()
		return nil

	default:
		// Recoverable: reopen the latch so the student can retry.
		c.mu.Lock()
		c.submitLatch = false
		c.setStateLocked(StateRunning)
		onErr := c.cfg.OnSubmitError
		c.mu.Unlock()
		if onErr != nil {
			onErr(err)
		}
		return err
	}
}

// DiscardDraft clears the local cache and best-effort deletes the remote
// draft without submitting. Only valid while Running.
func (c *Controller) DiscardDraft(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.dirty = false
	c.answers = make(map[string]string)
	clearCache(c.cfg.Store, c.cfg.MaterialID)
	c.mu.Unlock()

	return c.cfg.API.DeleteDraft(ctx, c.cfg.StudentID, c.cfg.MaterialID)
}

// Close tears the session down: timers are cancelled and, if unsynced
// edits remain, a final fire-and-forget draft flush is issued (the unload
// beacon). Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimersLocked()

	var save *DraftSave
	if c.state == StateRunning && c.dirty {
		save = c.buildDraftSaveLocked()
		c.dirty = false
	}
	c.mu.Unlock()

	if save != nil {
		// Response is intentionally ignored.
		_ = c.cfg.API.SaveDraft(context.Background(), save)
	}
}

// Flush pushes any unsaved answers to the server immediately, bypassing the
// debounce window. The session keeps running. Useful when the host loses
// focus but is not tearing down.
func (c *Controller) Flush() {
	c.mu.Lock()
	if c.state != StateRunning || !c.dirty {
		c.mu.Unlock()
		return
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.dirty = false
	save := c.buildDraftSaveLocked()
	c.mu.Unlock()

	_ = c.cfg.API.SaveDraft(context.Background(), save)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the countdown value in whole seconds. Untimed sessions
// report zero.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// RemainingDisplay returns the countdown formatted as mm:ss.
func (c *Controller) RemainingDisplay() string {
	return FormatRemaining(c.Remaining())
}

// SaveStatus returns the current save indicator value.
func (c *Controller) SaveStatus() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveStatus
}

// SubmissionID returns the accepted submission's identifier once the
// session is Terminated or AlreadySubmitted, empty otherwise.
func (c *Controller) SubmissionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissionID
}

// Answers returns a copy of the current answer set.
func (c *Controller) Answers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyAnswers(c.answers)
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if cb := c.cfg.OnStateChange; cb != nil {
		go cb(s)
	}
}

func (c *Controller) setSaveStatusLocked(s SaveStatus) {
	if c.saveStatus == s {
		return
	}
	c.saveStatus = s
	if cb := c.cfg.OnSaveStatus; cb != nil {
		go cb(s)
	}
}

func (c *Controller) stopTimersLocked() {
	if c.tickTimer != nil {
		c.tickTimer.Stop()
		c.tickTimer = nil
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.revertTimer != nil {
		c.revertTimer.Stop()
		c.revertTimer = nil
	}
}

// countAnswered counts entries with non-empty answers; a blank value is an
// unanswered question, not an answer.
func countAnswered(answers map[string]string) int {
	n := 0
	for _, v := range answers {
		if v != "" {
			n++
		}
	}
	return n
}

func copyAnswers(answers map[string]string) map[string]string {
	out := make(map[string]string, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}
