// Package game holds the client-side progression engine. One Engine runs
// per connected client; no client is authoritative. The shared store plus
// its change feed are the only coordination, so the engine pairs a
// best-effort subscription with a polling heartbeat and treats every
// snapshot it sees through the same idempotent merge.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/milad1377/stork-quiz-game/internal/identity"
	"github.com/milad1377/stork-quiz-game/internal/questions"
	"github.com/milad1377/stork-quiz-game/internal/registry"
	"github.com/milad1377/stork-quiz-game/internal/rooms"
	"github.com/milad1377/stork-quiz-game/internal/store"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLobby
	PhaseAwaiting
	PhaseAnswering
	PhaseRevealing
	PhaseEnded
)

var (
	ErrNoPlayer = errors.New("game: no player set")
	ErrNotHost  = errors.New("game: only the host can start the game")
	ErrNoRoom   = errors.New("game: not in a room")
)

// Deps wires the engine to its collaborators.
type Deps struct {
	Config    Config
	Store     store.Store
	Notifier  store.Notifier
	Rooms     *rooms.Manager
	Questions *questions.Resolver
	Registry  *registry.Registry
	Presenter Presenter
	Progress  ProgressCache
	Logger    *slog.Logger
	// ShareBase is the origin+path prepended to ?room=CODE links.
	ShareBase string
}

type Engine struct {
	cfg       Config
	store     store.Store
	notifier  store.Notifier
	rooms     *rooms.Manager
	resolver  *questions.Resolver
	registry  *registry.Registry
	presenter Presenter
	progress  ProgressCache
	logger    *slog.Logger
	shareBase string

	ctx context.Context

	mu sync.Mutex
	// epoch guards every timer and subscription callback: cleanup bumps
	// it, so callbacks scheduled against a previous room context become
	// no-ops instead of firing cross-room.
	epoch int

	player      *store.Player
	auth        *identity.User
	pendingCode string

	room      *store.Room
	session   *store.Session
	isHost    bool
	questions []store.Question
	qIndex    int

	phase        Phase
	gameEnded    bool
	startHandled bool

	questionStart time.Time
	deadline      time.Time
	answered      bool

	stopCountdown func()
	stopHeartbeat func()
	timers        []*time.Timer
	subs          []store.Subscription
}

func NewEngine(ctx context.Context, d Deps) *Engine {
	if d.Progress == nil {
		d.Progress = &MemoryProgressCache{}
	}
	return &Engine{
		cfg:       d.Config,
		store:     d.Store,
		notifier:  d.Notifier,
		rooms:     d.Rooms,
		resolver:  d.Questions,
		registry:  d.Registry,
		presenter: d.Presenter,
		progress:  d.Progress,
		logger:    d.Logger,
		shareBase: d.ShareBase,
		ctx:       ctx,
		phase:     PhaseIdle,
	}
}

// Initialize routes the client to its first screen: a share link with a
// room code joins directly (or stashes the code until a player is set),
// anything else lands on the menu.
func (e *Engine) Initialize(ctx context.Context, shareURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	code := rooms.CodeFromURL(shareURL)
	if code == "" {
		e.presenter.ShowScreen(ScreenMenu)
		return nil
	}
	if e.player == nil {
		e.pendingCode = code
		e.presenter.ShowScreen(ScreenNameInput)
		return nil
	}
	return e.joinRoomByCodeLocked(ctx, code)
}

// SetAuthenticated records the logged-in external identity. Pass nil on
// logout.
func (e *Engine) SetAuthenticated(u *identity.User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auth = u
}

// SetPlayer resolves a discord id (or guest name) to its registry record
// and completes a pending share-link join, if any.
func (e *Engine) SetPlayer(ctx context.Context, discordID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.setPlayerLocked(ctx, discordID); err != nil {
		return err
	}
	if e.pendingCode != "" {
		code := e.pendingCode
		e.pendingCode = ""
		return e.joinRoomByCodeLocked(ctx, code)
	}
	return nil
}

func (e *Engine) setPlayerLocked(ctx context.Context, discordID string) error {
	player, err := e.registry.CreateOrGet(ctx, discordID)
	if err != nil {
		e.presenter.Notify(LevelError, err.Error())
		return err
	}
	e.player = &player
	e.logger.Info("player set", "discord_id", player.DiscordID, "player_id", player.ID)
	return nil
}

type CreateOptions struct {
	Difficulty     store.Difficulty
	ScoreLimit     int
	QuestionsMode  store.QuestionsMode
	TotalQuestions int
}

// CreateRoom creates a room, joins the caller as host and opens the lobby.
func (e *Engine) CreateRoom(ctx context.Context, opts CreateOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createRoomLocked(ctx, opts)
}

func (e *Engine) createRoomLocked(ctx context.Context, opts CreateOptions) error {
	if e.player == nil {
		e.presenter.ShowScreen(ScreenNameInput)
		return ErrNoPlayer
	}

	e.presenter.Loading(true)
	room, session, err := e.rooms.CreateRoom(ctx, rooms.CreateParams{
		HostDiscordID:  e.player.DiscordID,
		Difficulty:     opts.Difficulty,
		ScoreLimit:     opts.ScoreLimit,
		QuestionsMode:  opts.QuestionsMode,
		TotalQuestions: opts.TotalQuestions,
		Auth:           e.auth,
	})
	e.presenter.Loading(false)
	if err != nil {
		e.presenter.Notify(LevelError, err.Error())
		return err
	}

	e.room = &room
	e.session = &session
	e.isHost = true
	e.gameEnded = false
	e.startHandled = false
	e.questions = nil
	e.qIndex = 0
	e.phase = PhaseLobby

	e.subscribeToRoomLocked()
	e.presenter.ShowLobby(room, rooms.ShareLink(e.shareBase, room.RoomCode), true)
	return nil
}

// JoinRoomByCode joins an existing room. Guests are vetted against the
// room's member names and against authenticated usernames first; joining
// an already-active room restores local progress and drops straight into
// the current question.
func (e *Engine) JoinRoomByCode(ctx context.Context, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.joinRoomByCodeLocked(ctx, code)
}

func (e *Engine) joinRoomByCodeLocked(ctx context.Context, code string) error {
	if e.player == nil {
		e.presenter.ShowScreen(ScreenNameInput)
		return ErrNoPlayer
	}

	e.presenter.Loading(true)
	room, err := e.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		e.presenter.Loading(false)
		e.presenter.Notify(LevelError, "Room not found")
		e.presenter.ShowScreen(ScreenMenu)
		return err
	}

	_, findErr := e.store.FindSession(ctx, room.ID, e.player.DiscordID)

	// A guest holding a session in this room is reconnecting; the name
	// guard only screens first-time joins.
	if e.auth == nil && errors.Is(findErr, store.ErrNotFound) {
		if err := e.rooms.CheckGuestName(ctx, room.ID, e.player.DiscordID); err != nil {
			e.presenter.Loading(false)
			if errors.Is(err, rooms.ErrNameTaken) {
				e.presenter.Notify(LevelError, "Name taken!")
				e.player = nil
				e.presenter.ShowScreen(ScreenNameInput)
			} else {
				e.presenter.Notify(LevelError, err.Error())
			}
			return err
		}
	}

	joined, err := e.rooms.JoinRoom(ctx, room.ID, e.player.DiscordID, false, e.auth)
	if err != nil {
		e.presenter.Loading(false)
		e.presenter.Notify(LevelError, err.Error())
		return err
	}

	e.room = &room
	e.session = &joined.Session
	e.isHost = joined.Session.IsHost
	e.gameEnded = false
	e.startHandled = room.Status == store.RoomStatusActive
	e.questions = nil
	e.qIndex = 0

	e.subscribeToRoomLocked()
	link := rooms.ShareLink(e.shareBase, room.RoomCode)

	if room.Status == store.RoomStatusActive {
		e.logger.Info("rejoining active game", "room", room.RoomCode)
		e.phase = PhaseAwaiting
		if saved, _ := e.progress.Load(); saved != nil && saved.RoomID == room.ID {
			e.qIndex = saved.QuestionIndex
		}
		e.loadQuestionsLocked(ctx)
		e.presenter.Loading(false)
		e.presenter.Notify(LevelSuccess, "Reconnected to game!")
		return nil
	}

	e.phase = PhaseLobby
	e.presenter.Loading(false)
	e.presenter.ShowLobby(room, link, e.isHost)
	e.presenter.Notify(LevelSuccess, "Joined!")
	return nil
}

// StartGame is the host's start button. In "same" mode the question set
// is drawn once here and its id order persisted so every player follows
// it; per-player mode lets each client draw its own on the start signal.
func (e *Engine) StartGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startGameLocked(ctx)
}

func (e *Engine) startGameLocked(ctx context.Context) error {
	if e.room == nil {
		return ErrNoRoom
	}
	if !e.isHost {
		return ErrNotHost
	}

	e.presenter.Loading(true)
	var questionIDs []uuid.UUID
	if e.room.QuestionsMode == store.ModeSame {
		qs, err := e.resolver.Random(ctx, e.room.TotalQuestions, e.room.Difficulty)
		if err != nil || len(qs) == 0 {
			e.presenter.Loading(false)
			e.presenter.Notify(LevelError, "No questions found! Check database or difficulty.")
			if err != nil {
				return err
			}
			return questions.ErrEmptyPool
		}
		e.questions = qs
		questionIDs = make([]uuid.UUID, len(qs))
		for i, q := range qs {
			questionIDs[i] = q.ID
		}
	}

	updated, err := e.rooms.StartRoom(ctx, e.room.ID, questionIDs)
	if err != nil {
		e.presenter.Loading(false)
		e.presenter.Notify(LevelError, "Failed to start game.")
		return err
	}
	e.room = &updated
	e.startHandled = true

	if e.room.QuestionsMode != store.ModeSame {
		e.loadQuestionsLocked(ctx)
	} else {
		e.qIndex = 0
		e.showCurrentQuestionLocked(ctx)
	}
	e.presenter.Loading(false)
	return nil
}

// StartSinglePlayer spins up a solo room and starts it immediately,
// inventing a guest identity when none is set.
func (e *Engine) StartSinglePlayer(ctx context.Context, difficulty store.Difficulty, totalQuestions int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil {
		guest := fmt.Sprintf("Guest_%d", rand.IntN(9000)+1000)
		if err := e.setPlayerLocked(ctx, guest); err != nil {
			return err
		}
	}

	e.presenter.Loading(true)
	room, session, err := e.rooms.CreateRoom(ctx, rooms.CreateParams{
		HostDiscordID:  e.player.DiscordID,
		Difficulty:     difficulty,
		ScoreLimit:     0,
		QuestionsMode:  store.ModeSame,
		TotalQuestions: totalQuestions,
		Auth:           e.auth,
	})
	e.presenter.Loading(false)
	if err != nil {
		e.presenter.Notify(LevelError, err.Error())
		return err
	}

	e.room = &room
	e.session = &session
	e.isHost = true
	e.gameEnded = false
	e.startHandled = false
	e.qIndex = 0

	return e.startGameLocked(ctx)
}

// SubmitAnswer handles the player's single submission for the current
// question. First answer wins: anything after it, or outside the
// answering window, is ignored.
func (e *Engine) SubmitAnswer(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseAnswering || e.answered {
		return nil
	}
	e.answered = true
	e.stopCountdownLocked()
	e.phase = PhaseRevealing

	timeTaken := time.Since(e.questionStart)
	q := e.questions[e.qIndex]
	duration := e.cfg.DurationFor(e.room.Difficulty)
	correct := key == q.CorrectAnswer
	points := CalculateScore(e.cfg, correct, timeTaken, duration)

	_, err := e.store.InsertAnswer(ctx, store.Answer{
		SessionID:    e.session.ID,
		QuestionID:   q.ID,
		PlayerAnswer: key,
		IsCorrect:    correct,
		TimeTakenMs:  int(timeTaken.Milliseconds()),
		PointsEarned: points,
	})
	if err != nil {
		e.presenter.Notify(LevelError, err.Error())
	} else if correct {
		// Optimistic: bump the local score ahead of the store write; the
		// next authoritative snapshot reconciles any disagreement.
		e.session.TotalScore += points
		e.persistScoreLocked(ctx, points)
	}

	e.presenter.ShowAnswerResult(correct, points, q.CorrectAnswer, key)

	if e.room.ScoreLimit > 0 && e.session.TotalScore >= e.room.ScoreLimit {
		e.scheduleLocked(e.cfg.WinDelay, func(ctx context.Context) {
			e.endGameLocked(ctx)
		})
		return nil
	}

	e.scheduleAdvanceLocked()
	return nil
}

// persistScoreLocked is the unguarded read-modify-write on total_score:
// whichever client holds the session issues it, concurrent writers can
// lose updates, accepted for a single human per session.
func (e *Engine) persistScoreLocked(ctx context.Context, points int) {
	current, err := e.store.GetSession(ctx, e.session.ID)
	if err != nil {
		e.logger.Warn("score persist: session fetch failed", "session_id", e.session.ID, "error", err)
		return
	}
	current.TotalScore += points
	if _, err := e.store.UpdateSession(ctx, current); err != nil {
		e.logger.Warn("score persist failed", "session_id", e.session.ID, "error", err)
	}
}

func (e *Engine) handleTimeoutLocked(ctx context.Context) {
	if e.phase != PhaseAnswering || e.answered {
		return
	}
	e.answered = true
	e.phase = PhaseRevealing

	q := e.questions[e.qIndex]
	duration := e.cfg.DurationFor(e.room.Difficulty)

	if _, err := e.store.InsertAnswer(ctx, store.Answer{
		SessionID:    e.session.ID,
		QuestionID:   q.ID,
		PlayerAnswer: "",
		IsCorrect:    false,
		TimeTakenMs:  int(duration.Milliseconds()),
		PointsEarned: 0,
	}); err != nil {
		e.logger.Warn("timeout answer insert failed", "error", err)
	}

	e.presenter.ShowAnswerResult(false, 0, q.CorrectAnswer, "")
	e.scheduleAdvanceLocked()
}

func (e *Engine) scheduleAdvanceLocked() {
	e.scheduleLocked(e.cfg.RevealDelay, func(ctx context.Context) {
		e.qIndex++
		e.phase = PhaseAwaiting
		e.showCurrentQuestionLocked(ctx)
	})
}

func (e *Engine) showCurrentQuestionLocked(ctx context.Context) {
	if e.gameEnded {
		return
	}
	if len(e.questions) == 0 {
		e.logger.Error("no questions to show")
		return
	}
	if e.qIndex >= len(e.questions) {
		e.endGameLocked(ctx)
		return
	}

	if err := e.progress.Save(Progress{RoomID: e.room.ID, QuestionIndex: e.qIndex, SavedAt: time.Now()}); err != nil {
		e.logger.Warn("progress save failed", "error", err)
	}

	q := e.questions[e.qIndex]
	duration := e.cfg.DurationFor(e.room.Difficulty)
	e.questionStart = time.Now()
	e.deadline = e.questionStart.Add(duration)
	e.answered = false
	e.phase = PhaseAnswering

	e.presenter.ShowQuestion(q, e.qIndex+1, len(e.questions), e.room.ScoreLimit)
	e.presenter.UpdateCountdown(duration)
	e.startCountdownLocked()
}

func (e *Engine) startCountdownLocked() {
	e.stopCountdownLocked()

	epoch := e.epoch
	ticker := time.NewTicker(e.cfg.CountdownTick)
	done := make(chan struct{})
	e.stopCountdown = func() {
		ticker.Stop()
		close(done)
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.countdownTick(epoch)
			}
		}
	}()
}

func (e *Engine) countdownTick(epoch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch || e.phase != PhaseAnswering || e.answered {
		return
	}

	left := time.Until(e.deadline)
	if left <= 0 {
		e.stopCountdownLocked()
		e.presenter.UpdateCountdown(0)
		e.handleTimeoutLocked(e.ctx)
		return
	}
	e.presenter.UpdateCountdown(left)
}

func (e *Engine) stopCountdownLocked() {
	if e.stopCountdown != nil {
		e.stopCountdown()
		e.stopCountdown = nil
	}
}

func (e *Engine) loadQuestionsLocked(ctx context.Context) {
	e.presenter.Loading(true)
	qs, err := e.resolver.Resolve(ctx, *e.room)
	e.presenter.Loading(false)
	if err != nil || len(qs) == 0 {
		e.presenter.Notify(LevelError, "Could not load questions. Database might be empty.")
		return
	}
	e.questions = qs

	if e.room.Status == store.RoomStatusActive {
		e.showCurrentQuestionLocked(ctx)
	}
	e.refreshPlayersLocked(ctx)
}

// subscribeToRoom establishes the reconciliation machinery for the
// current room: the two change subscriptions plus the heartbeat. Any
// previous room context is torn down first so nothing stale can fire
// against the new one.
func (e *Engine) subscribeToRoomLocked() {
	e.cleanupLocked()
	if e.room == nil {
		return
	}
	epoch := e.epoch
	roomID := e.room.ID

	roomSub, err := e.notifier.Subscribe(e.ctx, store.TableRooms, []store.Kind{store.Update}, roomID)
	if err != nil {
		e.logger.Warn("room subscription failed", "room_id", roomID, "error", err)
	} else {
		e.subs = append(e.subs, roomSub)
		go e.consumeEvents(epoch, roomSub)
	}

	sessSub, err := e.notifier.Subscribe(e.ctx, store.TableSessions, nil, roomID)
	if err != nil {
		e.logger.Warn("session subscription failed", "room_id", roomID, "error", err)
	} else {
		e.subs = append(e.subs, sessSub)
		go e.consumeEvents(epoch, sessSub)
	}

	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	done := make(chan struct{})
	e.stopHeartbeat = func() {
		ticker.Stop()
		close(done)
	}
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.heartbeatTick(epoch)
			}
		}
	}()

	e.refreshPlayersLocked(e.ctx)
}

func (e *Engine) consumeEvents(epoch int, sub store.Subscription) {
	for ev := range sub.Events() {
		e.handleChange(epoch, ev)
	}
}

// handleChange applies one pushed change event. Room updates feed the
// same merge as heartbeat snapshots; session changes just refresh the
// member list.
func (e *Engine) handleChange(epoch int, ev store.ChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch || e.room == nil {
		return
	}

	switch ev.Table {
	case store.TableRooms:
		if ev.Room != nil {
			e.applyRoomLocked(e.ctx, *ev.Room)
		}
	case store.TableSessions:
		e.refreshPlayersLocked(e.ctx)
	}
}

// applyRoomLocked is the single idempotent merge for room snapshots from
// either source: latest status wins, and the waiting → active transition
// triggers question resolution exactly once per room context.
func (e *Engine) applyRoomLocked(ctx context.Context, snapshot store.Room) {
	if e.room == nil || snapshot.ID != e.room.ID {
		return
	}
	e.room = &snapshot

	if snapshot.Status != store.RoomStatusActive {
		return
	}
	if e.isHost || e.gameEnded || e.startHandled {
		return
	}
	e.startHandled = true
	e.logger.Info("game start signal received", "room", snapshot.RoomCode)

	// The pushed payload can be stale next to the persisted question
	// list; re-fetch before resolving.
	if fresh, err := e.store.GetRoomByCode(ctx, snapshot.RoomCode); err == nil {
		e.room = &fresh
	}
	e.presenter.Notify(LevelSuccess, "Game Started!")
	e.phase = PhaseAwaiting
	e.loadQuestionsLocked(ctx)
}

// heartbeatTick is the polling fallback: while the room still looks
// waiting it re-fetches status in case the start signal was missed, it
// always refreshes the member list, and with a score limit configured it
// evaluates the win condition.
func (e *Engine) heartbeatTick(epoch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch || e.room == nil || e.gameEnded {
		return
	}

	if e.room.Status == store.RoomStatusWaiting {
		fresh, err := e.store.GetRoomByCode(e.ctx, e.room.RoomCode)
		if err == nil {
			if fresh.Status == store.RoomStatusActive && !e.isHost && !e.startHandled {
				e.logger.Info("start recovered via heartbeat", "room", fresh.RoomCode)
			}
			e.applyRoomLocked(e.ctx, fresh)
		}
	}

	e.refreshPlayersLocked(e.ctx)

	if e.room.ScoreLimit > 0 && e.room.Status == store.RoomStatusActive && !e.gameEnded {
		e.checkForWinnerLocked(e.ctx)
	}
}

func (e *Engine) refreshPlayersLocked(ctx context.Context) {
	if e.room == nil {
		return
	}
	views, err := e.rooms.SessionsByRoom(ctx, e.room.ID)
	if err != nil {
		e.logger.Warn("player list refresh failed", "error", err)
		return
	}
	e.presenter.UpdatePlayers(views)
	if e.room.Status == store.RoomStatusActive && e.room.ScoreLimit > 0 {
		e.presenter.UpdateLiveLeaderboard(views, e.room.ScoreLimit)
	}
}

// checkForWinnerLocked declares the first session (in join order) whose
// score meets the limit. Near-simultaneous crossings are resolved by that
// fetch order, not globally; accepted non-determinism.
func (e *Engine) checkForWinnerLocked(ctx context.Context) {
	views, err := e.rooms.SessionsByRoom(ctx, e.room.ID)
	if err != nil {
		return
	}

	for _, v := range views {
		if v.TotalScore < e.room.ScoreLimit {
			continue
		}
		winner := v
		e.logger.Info("winner detected", "name", winner.DisplayName(), "score", winner.TotalScore)
		e.gameEnded = true
		e.stopCountdownLocked()

		if e.player != nil && winner.PlayerDiscordID == e.player.DiscordID {
			e.presenter.Notify(LevelSuccess, "You Won!")
		} else {
			e.presenter.Notify(LevelInfo, fmt.Sprintf("%s Won!", winner.DisplayName()))
		}

		e.scheduleLocked(e.cfg.CelebrationDelay, func(ctx context.Context) {
			e.endGameLocked(ctx)
		})
		return
	}
}

// EndGame terminates the local client: final standings, then full
// teardown. It never writes an "ended" status to the store.
func (e *Engine) EndGame(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endGameLocked(ctx)
}

func (e *Engine) endGameLocked(ctx context.Context) {
	if e.phase == PhaseEnded {
		return
	}
	e.gameEnded = true
	e.phase = PhaseEnded
	if err := e.progress.Clear(); err != nil {
		e.logger.Warn("progress clear failed", "error", err)
	}

	selfID := ""
	if e.player != nil {
		selfID = e.player.DiscordID
	}
	if e.room != nil {
		if views, err := e.rooms.SessionsByRoom(ctx, e.room.ID); err == nil {
			e.presenter.ShowFinalResults(FinalStandings(ctx, e.store, views), selfID)
		}
	}
	e.cleanupLocked()
}

// LeaveRoom deletes the session, tears everything down and returns to
// the menu.
func (e *Engine) LeaveRoom(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if err := e.rooms.LeaveRoom(ctx, e.session.ID); err != nil {
			e.logger.Warn("leave room failed", "session_id", e.session.ID, "error", err)
		}
	}
	e.cleanupLocked()
	if err := e.progress.Clear(); err != nil {
		e.logger.Warn("progress clear failed", "error", err)
	}

	e.room = nil
	e.session = nil
	e.isHost = false
	e.questions = nil
	e.qIndex = 0
	e.phase = PhaseIdle
	e.gameEnded = false
	e.startHandled = false

	e.presenter.ShowScreen(ScreenMenu)
	e.presenter.Notify(LevelSuccess, "Left the lobby")
}

// Close tears down timers and subscriptions without touching the store.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanupLocked()
}

// cleanupLocked cancels the countdown, every scheduled delay, the
// heartbeat and both subscriptions, and bumps the epoch so anything
// already in flight lands on the floor.
func (e *Engine) cleanupLocked() {
	e.epoch++
	e.stopCountdownLocked()
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = nil
	if e.stopHeartbeat != nil {
		e.stopHeartbeat()
		e.stopHeartbeat = nil
	}
	for _, s := range e.subs {
		s.Unsubscribe()
	}
	e.subs = nil
}

// scheduleLocked runs fn under the engine lock after d, unless the epoch
// moved on in the meantime.
func (e *Engine) scheduleLocked(d time.Duration, fn func(ctx context.Context)) {
	epoch := e.epoch
	t := time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if epoch != e.epoch {
			return
		}
		fn(e.ctx)
	})
	e.timers = append(e.timers, t)
}

// Accessors, mainly for the terminal client and tests.

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) Player() *store.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return nil
	}
	p := *e.player
	return &p
}

func (e *Engine) Room() *store.Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.room == nil {
		return nil
	}
	r := *e.room
	return &r
}

func (e *Engine) Session() *store.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	s := *e.session
	return &s
}

func (e *Engine) IsHost() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isHost
}

func (e *Engine) QuestionIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.qIndex
}
