package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock drives AfterFunc timers deterministically. Advance fires due
// timers in deadline order, synchronously, before moving time forward.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	id       int
	deadline time.Time
	fn       func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		timers: make(map[int]*fakeTimer),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{clock: c, id: c.nextID, deadline: c.now.Add(d), fn: f}
	c.timers[t.id] = t
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t.id]; !ok {
		return false
	}
	delete(t.clock.timers, t.id)
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) ||
				(t.deadline.Equal(next.deadline) && t.id < next.id) {
				next = t
			}
		}
		if next == nil {
			break
		}
		delete(c.timers, next.id)
		c.now = next.deadline
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// fakeAPI records calls and returns configurable responses.
type fakeAPI struct {
	mu sync.Mutex

	progress    *Progress
	progressErr error

	saveErr   error
	saves     []*DraftSave
	deletes   int
	submits   []*Submission
	submitErr error
	submitID  string
}

func (a *fakeAPI) GetProgress(ctx context.Context, studentID int, materialID string) (*Progress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.progressErr != nil {
		return nil, a.progressErr
	}
	if a.progress == nil {
		return &Progress{}, nil
	}
	return a.progress, nil
}

func (a *fakeAPI) SaveDraft(ctx context.Context, save *DraftSave) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saveErr != nil {
		return a.saveErr
	}
	a.saves = append(a.saves, save)
	return nil
}

func (a *fakeAPI) DeleteDraft(ctx context.Context, studentID int, materialID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deletes++
	return nil
}

func (a *fakeAPI) SubmitQuiz(ctx context.Context, sub *Submission) (*SubmitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submits = append(a.submits, sub)
	if a.submitErr != nil {
		return nil, a.submitErr
	}
	id := a.submitID
	if id == "" {
		id = "sub-1"
	}
	return &SubmitResult{SubmissionID: id}, nil
}

func (a *fakeAPI) saveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.saves)
}

func (a *fakeAPI) lastSave() *DraftSave {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.saves) == 0 {
		return nil
	}
	return a.saves[len(a.saves)-1]
}

func (a *fakeAPI) submitCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.submits)
}

const testMaterial = "mat-1"

func newTestController(t *testing.T, clock *fakeClock, store Store, api API, limitMinutes int) *Controller {
	t.Helper()
	ctrl, err := New(Config{
		StudentID:        7,
		MaterialID:       testMaterial,
		QuizID:           "quiz-1",
		TimeLimitMinutes: limitMinutes,
		Store:            store,
		API:              api,
		Clock:            clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ctrl
}

func TestFreshStart(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := ctrl.State(); got != StateRunning {
		t.Fatalf("state = %s, want %s", got, StateRunning)
	}
	if got := ctrl.RemainingDisplay(); got != "10:00" {
		t.Errorf("display = %s, want 10:00", got)
	}

	// Start time must be persisted as epoch millis at mount.
	millis, ok := loadCachedStartTime(store, testMaterial)
	if !ok {
		t.Fatal("start time not cached")
	}
	if want := clock.Now().UnixMilli(); millis != want {
		t.Errorf("start time = %d, want %d", millis, want)
	}

	clock.Advance(time.Second)
	if got := ctrl.RemainingDisplay(); got != "09:59" {
		t.Errorf("display after 1s = %s, want 09:59", got)
	}
}

func TestStartTimeIdempotentAcrossRemounts(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	original, _ := loadCachedStartTime(store, testMaterial)
	ctrl.Close()

	clock.Advance(90 * time.Second)

	ctrl2 := newTestController(t, clock, store, api, 10)
	if err := ctrl2.Start(context.Background()); err != nil {
		t.Fatalf("Start (remount): %v", err)
	}

	after, _ := loadCachedStartTime(store, testMaterial)
	if after != original {
		t.Errorf("start time changed on remount: %d -> %d", original, after)
	}
	if got, want := ctrl2.Remaining(), 10*60-90; got != want {
		t.Errorf("remaining = %d, want %d", got, want)
	}
}

func TestReconciliationMoreAnswersWins(t *testing.T) {
	makeAnswers := func(prefix string, n int) map[string]string {
		out := make(map[string]string, n)
		for i := 0; i < n; i++ {
			out[fmt.Sprintf("q%d", i)] = prefix
		}
		return out
	}

	tests := []struct {
		name       string
		local      int
		remote     int
		wantSource string
		wantCount  int
	}{
		{"remote wins with more", 2, 5, "remote", 5},
		{"local wins with more", 5, 2, "local", 5},
		{"tie prefers remote", 3, 3, "remote", 3},
		{"empty local adopts remote", 0, 4, "remote", 4},
		{"empty remote keeps local", 4, 0, "local", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			store := NewMemoryStore()
			if tt.local > 0 {
				storeAnswers(store, testMaterial, makeAnswers("local", tt.local))
			}
			api := &fakeAPI{
				progress: &Progress{Draft: &Draft{
					Answers: makeAnswers("remote", tt.remote),
				}},
			}

			ctrl := newTestController(t, clock, store, api, 0)
			if err := ctrl.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}

			adopted := ctrl.Answers()
			if len(adopted) != tt.wantCount {
				t.Fatalf("adopted %d answers, want %d", len(adopted), tt.wantCount)
			}
			for qid, v := range adopted {
				if v != tt.wantSource {
					t.Errorf("answer %s came from %q, want %q", qid, v, tt.wantSource)
				}
			}

			// The adopted set is written back so both stores converge.
			cached := loadCachedAnswers(store, testMaterial)
			if len(cached) != tt.wantCount {
				t.Errorf("cache has %d answers after reconcile, want %d", len(cached), tt.wantCount)
			}
		})
	}
}

func TestReconciliationAdoptsRemoteStartTime(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	remoteStart := clock.Now().Add(-2 * time.Minute).UnixMilli()
	api := &fakeAPI{
		progress: &Progress{Draft: &Draft{
			Answers:   map[string]string{"q0": "a"},
			StartTime: remoteStart,
		}},
	}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	millis, ok := loadCachedStartTime(store, testMaterial)
	if !ok || millis != remoteStart {
		t.Errorf("cached start = %d (ok=%v), want remote %d", millis, ok, remoteStart)
	}
	if got, want := ctrl.Remaining(), 8*60; got != want {
		t.Errorf("remaining = %d, want %d", got, want)
	}
}

func TestAlreadySubmittedShortCircuits(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	storeAnswers(store, testMaterial, map[string]string{"q0": "cached"})
	api := &fakeAPI{
		progress: &Progress{AlreadySubmitted: true, SubmissionID: "sub-9"},
	}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := ctrl.State(); got != StateAlreadySubmitted {
		t.Fatalf("state = %s, want %s", got, StateAlreadySubmitted)
	}
	if got := ctrl.SubmissionID(); got != "sub-9" {
		t.Errorf("submission id = %s, want sub-9", got)
	}

	// No timer was started: time passing changes nothing.
	clock.Advance(time.Minute)
	if got := ctrl.Remaining(); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
	if err := ctrl.SetAnswer("q1", "x"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("SetAnswer err = %v, want ErrNotRunning", err)
	}
}

func TestProgressFetchFailureDegradesToCache(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	storeAnswers(store, testMaterial, map[string]string{"q0": "cached", "q1": "cached"})
	api := &fakeAPI{progressErr: errors.New("network down")}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start should not fail on fetch error: %v", err)
	}

	if got := ctrl.State(); got != StateRunning {
		t.Fatalf("state = %s, want %s", got, StateRunning)
	}
	if got := len(ctrl.Answers()); got != 2 {
		t.Errorf("answers = %d, want 2 from cache", got)
	}
}

func TestDebounceCoalescesEdits(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Five edits, each within the quiescence window of the previous one.
	for i := 0; i < 5; i++ {
		if err := ctrl.SetAnswer("q1", fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("SetAnswer: %v", err)
		}
		clock.Advance(500 * time.Millisecond)
	}

	// Trailing edge only: nothing flushed yet 0.5s after the last edit.
	if got := api.saveCount(); got != 0 {
		t.Fatalf("saves before window = %d, want 0", got)
	}

	clock.Advance(2 * time.Second)
	if got := api.saveCount(); got != 1 {
		t.Fatalf("saves after window = %d, want 1", got)
	}
	if got := api.lastSave().Answers["q1"]; got != "v4" {
		t.Errorf("flushed answer = %s, want v4 (last edit)", got)
	}

	// Local cache was written synchronously on every edit regardless.
	cached := loadCachedAnswers(store, testMaterial)
	if cached["q1"] != "v4" {
		t.Errorf("cached answer = %s, want v4", cached["q1"])
	}
}

func TestDebouncedSaveCarriesStartTime(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	start, _ := loadCachedStartTime(store, testMaterial)

	ctrl.SetAnswer("q1", "a")
	clock.Advance(3 * time.Second)

	save := api.lastSave()
	if save == nil {
		t.Fatal("no save issued")
	}
	if save.StartTime != start {
		t.Errorf("save start time = %d, want cached %d", save.StartTime, start)
	}
	if save.StudentID != 7 || save.MaterialID != testMaterial || save.QuizID != "quiz-1" {
		t.Errorf("save identifiers wrong: %+v", save)
	}
}

func TestSaveFailureRetriesOnNextEditCycle(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{saveErr: errors.New("boom")}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctrl.SetAnswer("q1", "a")
	clock.Advance(2 * time.Second)
	if got := ctrl.SaveStatus(); got != SaveError {
		t.Fatalf("save status = %s, want %s", got, SaveError)
	}

	// Indicator auto-reverts; no automatic retry loop fires meanwhile.
	clock.Advance(3 * time.Second)
	if got := ctrl.SaveStatus(); got != SaveIdle {
		t.Errorf("save status after revert = %s, want %s", got, SaveIdle)
	}
	if got := api.saveCount(); got != 0 {
		t.Fatalf("saves recorded = %d, want 0 while failing", got)
	}

	// The next edit's cycle carries the earlier answer too.
	api.mu.Lock()
	api.saveErr = nil
	api.mu.Unlock()

	ctrl.SetAnswer("q2", "b")
	clock.Advance(2 * time.Second)
	save := api.lastSave()
	if save == nil {
		t.Fatal("retry save not issued")
	}
	if save.Answers["q1"] != "a" || save.Answers["q2"] != "b" {
		t.Errorf("retry save missing answers: %v", save.Answers)
	}
}

func TestSaveIndicatorTransitions(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctrl.SetAnswer("q1", "a")
	clock.Advance(2 * time.Second)
	if got := ctrl.SaveStatus(); got != SaveSaved {
		t.Fatalf("status after flush = %s, want %s", got, SaveSaved)
	}
	clock.Advance(2 * time.Second)
	if got := ctrl.SaveStatus(); got != SaveIdle {
		t.Errorf("status after revert = %s, want %s", got, SaveIdle)
	}
}

func TestAtMostOneSubmission(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 1)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.SetAnswer("q1", "a")

	// Expiry fires the forced submission.
	clock.Advance(61 * time.Second)
	if got := ctrl.State(); got != StateTerminated {
		t.Fatalf("state after expiry = %s, want %s", got, StateTerminated)
	}

	// A late manual click must not produce a second call.
	if err := ctrl.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("late Submit err = %v, want ErrSubmitInFlight", err)
	}
	if got := api.submitCount(); got != 1 {
		t.Fatalf("submit calls = %d, want 1", got)
	}
}

func TestExpiredOnLoadSubmitsImmediately(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	storeStartTime(store, testMaterial, clock.Now().Add(-11*time.Minute).UnixMilli())
	storeAnswers(store, testMaterial, map[string]string{"q1": "a"})
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := ctrl.State(); got != StateTerminated {
		t.Fatalf("state = %s, want %s (no countdown phase)", got, StateTerminated)
	}
	if got := api.submitCount(); got != 1 {
		t.Fatalf("submit calls = %d, want 1", got)
	}
	if got := api.submits[0].Answers["q1"]; got != "a" {
		t.Errorf("submitted answers missing cached edit: %v", api.submits[0].Answers)
	}
}

func TestSubmitSuccessClearsState(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{submitID: "sub-42"}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.SetAnswer("q1", "a")

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got := ctrl.SubmissionID(); got != "sub-42" {
		t.Errorf("submission id = %s, want sub-42", got)
	}
	if _, ok := store.Get(answersKey(testMaterial)); ok {
		t.Error("answers cache not cleared after submit")
	}
	if _, ok := store.Get(startTimeKey(testMaterial)); ok {
		t.Error("start time cache not cleared after submit")
	}

	// Best-effort draft delete happens off the critical path.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		api.mu.Lock()
		n := api.deletes
		api.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("remote draft delete never issued")
}

func TestSubmitConflictIsTerminalSuccess(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	storeAnswers(store, testMaterial, map[string]string{"q1": "a"})
	api := &fakeAPI{submitErr: &ConflictError{SubmissionID: "sub-77"}}

	ctrl := newTestController(t, clock, store, api, 0)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("conflict must not surface as an error, got: %v", err)
	}
	if got := ctrl.State(); got != StateAlreadySubmitted {
		t.Fatalf("state = %s, want %s", got, StateAlreadySubmitted)
	}
	if got := ctrl.SubmissionID(); got != "sub-77" {
		t.Errorf("submission id = %s, want sub-77", got)
	}
	if cached := loadCachedAnswers(store, testMaterial); cached != nil {
		t.Error("cache not cleared on conflict")
	}

	// The latch stays closed.
	if err := ctrl.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second Submit err = %v, want ErrSubmitInFlight", err)
	}
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{submitErr: errors.New("server unavailable")}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.SetAnswer("q1", "a")

	if err := ctrl.Submit(context.Background()); err == nil {
		t.Fatal("expected submit error")
	}
	if got := ctrl.State(); got != StateRunning {
		t.Fatalf("state after failure = %s, want %s", got, StateRunning)
	}

	api.mu.Lock()
	api.submitErr = nil
	api.mu.Unlock()

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if got := ctrl.State(); got != StateTerminated {
		t.Errorf("state after retry = %s, want %s", got, StateTerminated)
	}
	if got := api.submitCount(); got != 2 {
		t.Errorf("submit calls = %d, want 2", got)
	}
}

func TestCloseFlushesDirtyDraft(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Edit, then close before the debounce window elapses.
	ctrl.SetAnswer("q1", "a")
	ctrl.Close()

	if got := api.saveCount(); got != 1 {
		t.Fatalf("beacon saves = %d, want 1", got)
	}
	if got := api.lastSave().Answers["q1"]; got != "a" {
		t.Errorf("beacon answers = %v", api.lastSave().Answers)
	}

	// Closing again is a no-op.
	ctrl.Close()
	if got := api.saveCount(); got != 1 {
		t.Errorf("saves after double close = %d, want 1", got)
	}
}

func TestFlushBypassesDebounce(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctrl.SetAnswer("q1", "a")
	ctrl.Flush()

	if got := api.saveCount(); got != 1 {
		t.Fatalf("saves after flush = %d, want 1", got)
	}
	if ctrl.State() != StateRunning {
		t.Errorf("state after flush = %v, want Running", ctrl.State())
	}

	// Nothing dirty left, so the debounce window firing later saves nothing.
	clock.Advance(5 * time.Second)
	if got := api.saveCount(); got != 1 {
		t.Errorf("saves after window = %d, want 1", got)
	}

	// Flush with no pending edits is a no-op.
	ctrl.Flush()
	if got := api.saveCount(); got != 1 {
		t.Errorf("saves after idle flush = %d, want 1", got)
	}
}

func TestCloseWithoutEditsSendsNothing(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.Close()

	if got := api.saveCount(); got != 0 {
		t.Errorf("saves on clean close = %d, want 0", got)
	}
}

func TestDiscardDraft(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 0)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.SetAnswer("q1", "a")

	if err := ctrl.DiscardDraft(context.Background()); err != nil {
		t.Fatalf("DiscardDraft: %v", err)
	}
	if got := len(ctrl.Answers()); got != 0 {
		t.Errorf("answers after discard = %d, want 0", got)
	}
	if cached := loadCachedAnswers(store, testMaterial); cached != nil {
		t.Error("cache not cleared on discard")
	}
	api.mu.Lock()
	deletes := api.deletes
	api.mu.Unlock()
	if deletes != 1 {
		t.Errorf("remote deletes = %d, want 1", deletes)
	}
}

func TestUntimedSessionNeverExpires(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	ctrl := newTestController(t, clock, store, api, 0)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(24 * time.Hour)
	if got := ctrl.State(); got != StateRunning {
		t.Errorf("state = %s, want %s", got, StateRunning)
	}
	if got := api.submitCount(); got != 0 {
		t.Errorf("submit calls = %d, want 0", got)
	}

	// No start time persisted: untimed sessions skip the deadline machine.
	if _, ok := loadCachedStartTime(store, testMaterial); ok {
		t.Error("untimed session persisted a start time")
	}
}

func TestCorruptCacheTreatedAsAbsence(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	store.Set(answersKey(testMaterial), "{not json")
	store.Set(startTimeKey(testMaterial), "yesterday")
	api := &fakeAPI{
		progress: &Progress{Draft: &Draft{
			Answers: map[string]string{"q0": "remote"},
		}},
	}

	ctrl := newTestController(t, clock, store, api, 10)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := ctrl.Answers()["q0"]; got != "remote" {
		t.Errorf("adopted answers = %v, want remote draft", ctrl.Answers())
	}
	// The corrupt start time was replaced with a fresh one.
	if _, ok := loadCachedStartTime(store, testMaterial); !ok {
		t.Error("start time not re-persisted over corrupt value")
	}
}

func TestCountdownSequence(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	api := &fakeAPI{}

	var ticks []int
	var mu sync.Mutex
	ctrl, err := New(Config{
		StudentID:        7,
		MaterialID:       testMaterial,
		QuizID:           "quiz-1",
		TimeLimitMinutes: 1,
		Store:            store,
		API:              api,
		Clock:            clock,
		OnTick: func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(3 * time.Second)

	mu.Lock()
	got := append([]int(nil), ticks...)
	mu.Unlock()
	sort.Sort(sort.Reverse(sort.IntSlice(got)))
	want := []int{59, 58, 57}
	if len(got) != len(want) {
		t.Fatalf("ticks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ticks = %v, want %v", got, want)
		}
	}
}
