package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/milad1377/stork-quiz-game/internal/questions"
	"github.com/milad1377/stork-quiz-game/internal/registry"
	"github.com/milad1377/stork-quiz-game/internal/rooms"
	"github.com/milad1377/stork-quiz-game/internal/store"
)

func testConfig() Config {
	return Config{
		TotalQuestions:       5,
		QuestionDuration:     500 * time.Millisecond,
		HardQuestionDuration: 300 * time.Millisecond,
		BasePoints:           10,
		MaxSpeedBonus:        5,
		RevealDelay:          25 * time.Millisecond,
		WinDelay:             25 * time.Millisecond,
		CelebrationDelay:     25 * time.Millisecond,
		HeartbeatInterval:    40 * time.Millisecond,
		CountdownTick:        10 * time.Millisecond,
	}
}

type recordingPresenter struct {
	mu        sync.Mutex
	screens   []Screen
	notices   []string
	questions int
	finals    [][]Standing
	lastShown store.Question
	results   []string // "correct:+N" or "miss:<selected>"
}

func (p *recordingPresenter) ShowScreen(s Screen) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screens = append(p.screens, s)
}
func (p *recordingPresenter) Loading(bool) {}
func (p *recordingPresenter) Notify(level Level, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, string(level)+": "+msg)
}
func (p *recordingPresenter) ShowLobby(store.Room, string, bool)           {}
func (p *recordingPresenter) UpdatePlayers([]store.SessionView)            {}
func (p *recordingPresenter) UpdateLiveLeaderboard([]store.SessionView, int) {}
func (p *recordingPresenter) ShowQuestion(q store.Question, _, _, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions++
	p.lastShown = q
}
func (p *recordingPresenter) UpdateCountdown(time.Duration) {}
func (p *recordingPresenter) ShowAnswerResult(correct bool, points int, _, selected string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if correct {
		p.results = append(p.results, fmt.Sprintf("correct:+%d", points))
	} else {
		p.results = append(p.results, "miss:"+selected)
	}
}
func (p *recordingPresenter) ShowFinalResults(standings []Standing, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finals = append(p.finals, standings)
}

func (p *recordingPresenter) questionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.questions
}

func (p *recordingPresenter) finalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.finals)
}

func (p *recordingPresenter) hasNotice(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.notices {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func (p *recordingPresenter) currentQuestionID() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastShown.ID
}

func seedQuestions(t *testing.T, mem *store.Memory, n int) {
	t.Helper()
	qs := make([]store.Question, n)
	for i := range qs {
		qs[i] = store.Question{
			ID:            uuid.New(),
			QuestionText:  fmt.Sprintf("question %d", i),
			OptionA:       "first",
			OptionB:       "second",
			OptionC:       "third",
			OptionD:       "fourth",
			CorrectAnswer: "a",
			Difficulty:    store.DifficultyEasy,
		}
	}
	if err := mem.InsertQuestions(context.Background(), qs); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
}

func newTestEngine(t *testing.T, mem *store.Memory, notifier store.Notifier, p Presenter) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(context.Background(), Deps{
		Config:    testConfig(),
		Store:     mem,
		Notifier:  notifier,
		Rooms:     rooms.NewManager(mem, logger),
		Questions: questions.NewResolver(mem),
		Registry:  registry.New(mem, logger),
		Presenter: p,
		Progress:  &MemoryProgressCache{},
		Logger:    logger,
		ShareBase: "https://example.com/",
	})
	t.Cleanup(e.Close)
	return e
}

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSinglePlayerRunsAllQuestions(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 6)
	p := &recordingPresenter{}
	e := newTestEngine(t, mem, mem, p)
	ctx := context.Background()

	if err := e.StartSinglePlayer(ctx, store.DifficultyMixed, 3); err != nil {
		t.Fatalf("StartSinglePlayer: %v", err)
	}

	for i := 0; i < 3; i++ {
		waitFor(t, 2*time.Second, "answering phase", func() bool { return e.Phase() == PhaseAnswering })
		if err := e.SubmitAnswer(ctx, "a"); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
	}

	waitFor(t, 2*time.Second, "game end", func() bool { return e.Phase() == PhaseEnded })
	if got := p.questionCount(); got != 3 {
		t.Errorf("questions shown = %d, want 3", got)
	}
	if p.finalCount() != 1 {
		t.Fatalf("final results shown %d times, want 1", p.finalCount())
	}

	stats, err := mem.SessionStatsByID(ctx, e.Session().ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Correct != 3 {
		t.Errorf("stats = %+v, want 3/3 correct", stats)
	}
	if e.Session().TotalScore < 30 {
		t.Errorf("total score = %d, want at least 3 base scores", e.Session().TotalScore)
	}
}

func TestScoreLimitEndsGameEarly(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 6)
	p := &recordingPresenter{}
	e := newTestEngine(t, mem, mem, p)
	ctx := context.Background()

	if err := e.SetPlayer(ctx, "alice"); err != nil {
		t.Fatalf("SetPlayer: %v", err)
	}
	if err := e.CreateRoom(ctx, CreateOptions{
		Difficulty:     store.DifficultyMixed,
		ScoreLimit:     10,
		QuestionsMode:  store.ModeSame,
		TotalQuestions: 5,
	}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := e.StartGame(ctx); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	waitFor(t, 2*time.Second, "answering phase", func() bool { return e.Phase() == PhaseAnswering })
	if err := e.SubmitAnswer(ctx, "a"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	waitFor(t, 2*time.Second, "game end", func() bool { return e.Phase() == PhaseEnded })
	if got := p.questionCount(); got != 1 {
		t.Errorf("questions shown = %d, want 1 (limit reached on the first)", got)
	}
}

func TestTimeoutRecordsEmptyAnswer(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 3)
	p := &recordingPresenter{}
	e := newTestEngine(t, mem, mem, p)
	ctx := context.Background()

	if err := e.StartSinglePlayer(ctx, store.DifficultyMixed, 1); err != nil {
		t.Fatalf("StartSinglePlayer: %v", err)
	}

	waitFor(t, 3*time.Second, "game end after timeout", func() bool { return e.Phase() == PhaseEnded })

	stats, err := mem.SessionStatsByID(ctx, e.Session().ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 || stats.Correct != 0 {
		t.Errorf("stats = %+v, want one incorrect answer", stats)
	}
	if e.Session().TotalScore != 0 {
		t.Errorf("score after timeout = %d, want 0", e.Session().TotalScore)
	}
}

func TestGuestStartsOnRoomNotification(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 4)
	hostP, guestP := &recordingPresenter{}, &recordingPresenter{}
	host := newTestEngine(t, mem, mem, hostP)
	guest := newTestEngine(t, mem, mem, guestP)
	ctx := context.Background()

	if err := host.SetPlayer(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := host.CreateRoom(ctx, CreateOptions{
		Difficulty:     store.DifficultyMixed,
		QuestionsMode:  store.ModeSame,
		TotalQuestions: 2,
	}); err != nil {
		t.Fatal(err)
	}

	if err := guest.SetPlayer(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := guest.JoinRoomByCode(ctx, host.Room().RoomCode); err != nil {
		t.Fatalf("JoinRoomByCode: %v", err)
	}

	if err := host.StartGame(ctx); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	waitFor(t, 2*time.Second, "guest to see the start", func() bool { return guest.Phase() == PhaseAnswering })
	if !guestP.hasNotice("Game Started!") {
		t.Error("guest never saw the start notice")
	}

	// Both clients resolved the same persisted question order.
	waitFor(t, time.Second, "host question", func() bool { return hostP.questionCount() == 1 })
	if hostP.currentQuestionID() != guestP.currentQuestionID() {
		t.Error("host and guest disagree on the current question")
	}
}

func TestGuestRejoinNotBlockedByOwnName(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 4)
	hostP := &recordingPresenter{}
	host := newTestEngine(t, mem, mem, hostP)
	ctx := context.Background()

	if err := host.SetPlayer(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := host.CreateRoom(ctx, CreateOptions{
		Difficulty:     store.DifficultyMixed,
		QuestionsMode:  store.ModeSame,
		TotalQuestions: 2,
	}); err != nil {
		t.Fatal(err)
	}
	code := host.Room().RoomCode

	guest := newTestEngine(t, mem, mem, &recordingPresenter{})
	if err := guest.SetPlayer(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := guest.JoinRoomByCode(ctx, code); err != nil {
		t.Fatalf("first join: %v", err)
	}
	guest.Close()

	// A restarted client joins under the same name. Its own session must
	// not trip the collision guard.
	backP := &recordingPresenter{}
	back := newTestEngine(t, mem, mem, backP)
	if err := back.SetPlayer(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := back.JoinRoomByCode(ctx, code); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if backP.hasNotice("Name taken!") {
		t.Error("rejoin bounced as a name collision")
	}
	if back.Phase() != PhaseLobby {
		t.Errorf("phase = %v, want lobby", back.Phase())
	}

	sessions, err := mem.SessionsByRoom(ctx, back.Room().ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sessions))
	}

	// A different guest with a case-variant name is still turned away.
	otherP := &recordingPresenter{}
	other := newTestEngine(t, mem, mem, otherP)
	if err := other.SetPlayer(ctx, "BOB"); err != nil {
		t.Fatal(err)
	}
	if err := other.JoinRoomByCode(ctx, code); !errors.Is(err, rooms.ErrNameTaken) {
		t.Fatalf("case-variant join err = %v, want ErrNameTaken", err)
	}
}

// deafNotifier simulates a change feed that silently loses everything.
type deafNotifier struct{}

func (deafNotifier) Publish(context.Context, store.ChangeEvent) error { return nil }
func (deafNotifier) Subscribe(context.Context, store.Table, []store.Kind, uuid.UUID) (store.Subscription, error) {
	return deafSub{ch: make(chan store.ChangeEvent)}, nil
}

type deafSub struct{ ch chan store.ChangeEvent }

func (s deafSub) Events() <-chan store.ChangeEvent { return s.ch }
func (deafSub) Unsubscribe()                        {}

func TestHeartbeatRecoversMissedStart(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 4)
	hostP, guestP := &recordingPresenter{}, &recordingPresenter{}
	host := newTestEngine(t, mem, mem, hostP)
	guest := newTestEngine(t, mem, deafNotifier{}, guestP)
	ctx := context.Background()

	if err := host.SetPlayer(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := host.CreateRoom(ctx, CreateOptions{
		Difficulty:     store.DifficultyMixed,
		QuestionsMode:  store.ModeSame,
		TotalQuestions: 2,
	}); err != nil {
		t.Fatal(err)
	}
	if err := guest.SetPlayer(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := guest.JoinRoomByCode(ctx, host.Room().RoomCode); err != nil {
		t.Fatal(err)
	}

	if err := host.StartGame(ctx); err != nil {
		t.Fatal(err)
	}

	// No push ever arrives; only the polling heartbeat can catch this.
	waitFor(t, 2*time.Second, "heartbeat start recovery", func() bool { return guest.Phase() == PhaseAnswering })
}

func TestObservedWinnerEndsObserverGame(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 6)
	hostP, guestP := &recordingPresenter{}, &recordingPresenter{}
	host := newTestEngine(t, mem, mem, hostP)
	guest := newTestEngine(t, mem, mem, guestP)
	ctx := context.Background()

	if err := host.SetPlayer(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := host.CreateRoom(ctx, CreateOptions{
		Difficulty:     store.DifficultyMixed,
		ScoreLimit:     10,
		QuestionsMode:  store.ModeSame,
		TotalQuestions: 5,
	}); err != nil {
		t.Fatal(err)
	}
	if err := guest.SetPlayer(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := guest.JoinRoomByCode(ctx, host.Room().RoomCode); err != nil {
		t.Fatal(err)
	}

	if err := host.StartGame(ctx); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, "host answering", func() bool { return host.Phase() == PhaseAnswering })
	if err := host.SubmitAnswer(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "observer game end", func() bool { return guest.Phase() == PhaseEnded })
	if !guestP.hasNotice("Won!") {
		t.Error("observer never saw the win notice")
	}
}

func TestCleanupStopsAllActivity(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 6)
	p := &recordingPresenter{}
	e := newTestEngine(t, mem, mem, p)
	ctx := context.Background()

	if err := e.StartSinglePlayer(ctx, store.DifficultyMixed, 5); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, "answering phase", func() bool { return e.Phase() == PhaseAnswering })

	e.EndGame(ctx)
	if e.Phase() != PhaseEnded {
		t.Fatalf("phase after EndGame = %v, want ended", e.Phase())
	}

	shown := p.questionCount()
	stats, _ := mem.SessionStatsByID(ctx, e.Session().ID)

	// Long enough for the abandoned countdown, reveal timer and
	// heartbeat to have fired if cleanup missed any of them.
	time.Sleep(700 * time.Millisecond)

	if got := p.questionCount(); got != shown {
		t.Errorf("questions kept advancing after EndGame: %d -> %d", shown, got)
	}
	after, _ := mem.SessionStatsByID(ctx, e.Session().ID)
	if after.Total != stats.Total {
		t.Errorf("answers kept landing after EndGame: %d -> %d", stats.Total, after.Total)
	}
}

func TestDuplicateSubmitIgnored(t *testing.T) {
	mem := store.NewMemory()
	seedQuestions(t, mem, 3)
	p := &recordingPresenter{}
	e := newTestEngine(t, mem, mem, p)
	ctx := context.Background()

	if err := e.StartSinglePlayer(ctx, store.DifficultyMixed, 2); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, "answering phase", func() bool { return e.Phase() == PhaseAnswering })

	if err := e.SubmitAnswer(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := e.SubmitAnswer(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	stats, err := mem.SessionStatsByID(ctx, e.Session().ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 {
		t.Errorf("answers recorded = %d, want 1 (second submit ignored)", stats.Total)
	}
}
