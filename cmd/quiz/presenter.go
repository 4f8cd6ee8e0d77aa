package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/milad1377/stork-quiz-game/internal/game"
	"github.com/milad1377/stork-quiz-game/internal/store"
)

// termPresenter renders the game as plain text. All output goes through
// one writer under one mutex so concurrent engine callbacks never
// interleave mid-line.
type termPresenter struct {
	mu  sync.Mutex
	out io.Writer

	lastSeconds int
}

func newTermPresenter(out io.Writer) *termPresenter {
	return &termPresenter{out: out, lastSeconds: -1}
}

var _ game.Presenter = (*termPresenter)(nil)

func (p *termPresenter) ShowScreen(s game.Screen) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch s {
	case game.ScreenMenu:
		fmt.Fprintln(p.out, "\n=== Quiz ===")
		fmt.Fprintln(p.out, "commands: name <you> | create | join <CODE> | single | quit")
	case game.ScreenNameInput:
		fmt.Fprintln(p.out, "\nPick a name first: name <you>")
	case game.ScreenResults:
		fmt.Fprintln(p.out, "\n=== Final Results ===")
	}
}

func (p *termPresenter) Loading(on bool) {
	if !on {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "...")
}

func (p *termPresenter) Notify(level game.Level, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch level {
	case game.LevelError:
		fmt.Fprintf(p.out, "!! %s\n", msg)
	case game.LevelSuccess:
		fmt.Fprintf(p.out, ">> %s\n", msg)
	default:
		fmt.Fprintf(p.out, "-- %s\n", msg)
	}
}

func (p *termPresenter) ShowLobby(room store.Room, shareLink string, isHost bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n=== Lobby %s ===\n", room.RoomCode)
	fmt.Fprintf(p.out, "difficulty %s, %d questions", room.Difficulty, room.TotalQuestions)
	if room.ScoreLimit > 0 {
		fmt.Fprintf(p.out, ", first to %d points wins", room.ScoreLimit)
	}
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "share: %s\n", shareLink)
	if code, err := qrcode.New(shareLink, qrcode.Low); err == nil {
		fmt.Fprint(p.out, code.ToSmallString(false))
	}
	if isHost {
		fmt.Fprintln(p.out, "type 'start' when everyone is in")
	} else {
		fmt.Fprintln(p.out, "waiting for the host to start")
	}
}

func (p *termPresenter) UpdatePlayers(players []store.SessionView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "players (%d):", len(players))
	for _, pl := range players {
		if pl.IsHost {
			fmt.Fprintf(p.out, " %s(host)", pl.DisplayName())
		} else {
			fmt.Fprintf(p.out, " %s", pl.DisplayName())
		}
	}
	fmt.Fprintln(p.out)
}

func (p *termPresenter) UpdateLiveLeaderboard(players []store.SessionView, scoreLimit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "race to %d:", scoreLimit)
	for _, pl := range players {
		fmt.Fprintf(p.out, " %s=%d", pl.DisplayName(), pl.TotalScore)
	}
	fmt.Fprintln(p.out)
}

func (p *termPresenter) ShowQuestion(q store.Question, number, total, scoreLimit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeconds = -1

	fmt.Fprintf(p.out, "\nQ%d/%d: %s\n", number, total, q.QuestionText)
	fmt.Fprintf(p.out, "  a) %s\n  b) %s\n  c) %s\n  d) %s\n", q.OptionA, q.OptionB, q.OptionC, q.OptionD)
}

func (p *termPresenter) UpdateCountdown(remaining time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The engine ticks every 100ms; only whole-second changes are worth
	// a line of terminal.
	secs := int(remaining.Round(time.Second) / time.Second)
	if secs == p.lastSeconds {
		return
	}
	p.lastSeconds = secs
	if secs <= 5 {
		fmt.Fprintf(p.out, "  %ds\n", secs)
	}
}

func (p *termPresenter) ShowAnswerResult(correct bool, points int, correctKey, selectedKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case correct:
		fmt.Fprintf(p.out, "correct! +%d points\n", points)
	case selectedKey == "":
		fmt.Fprintf(p.out, "time's up, the answer was %s\n", correctKey)
	default:
		fmt.Fprintf(p.out, "wrong, the answer was %s\n", correctKey)
	}
}

func (p *termPresenter) ShowFinalResults(standings []game.Standing, selfDiscordID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, "\n=== Final Results ===")
	for _, s := range standings {
		marker := " "
		if s.Player.PlayerDiscordID == selfDiscordID {
			marker = "*"
		}
		fmt.Fprintf(p.out, "%s %d. %-20s %4d pts  (%d/%d correct)\n",
			marker, s.Rank, s.Player.DisplayName(), s.Player.TotalScore,
			s.Stats.Correct, s.Stats.Total)
	}
}
