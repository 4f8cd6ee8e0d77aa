package game

import (
	"time"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Screen names the safe navigation targets the engine can send the
// player to.
type Screen string

const (
	ScreenMenu      Screen = "menu"
	ScreenNameInput Screen = "name-input"
	ScreenLobby     Screen = "lobby"
	ScreenGame      Screen = "game"
	ScreenResults   Screen = "results"
)

// Presenter is the narrow interface to the rendering layer. The engine
// never touches presentation beyond these calls, and a presenter must
// never call back into the engine from inside them.
type Presenter interface {
	ShowScreen(s Screen)
	Loading(on bool)
	Notify(level Level, msg string)

	ShowLobby(room store.Room, shareLink string, isHost bool)
	UpdatePlayers(players []store.SessionView)
	UpdateLiveLeaderboard(players []store.SessionView, scoreLimit int)

	ShowQuestion(q store.Question, number, total, scoreLimit int)
	UpdateCountdown(remaining time.Duration)
	ShowAnswerResult(correct bool, points int, correctKey, selectedKey string)

	ShowFinalResults(standings []Standing, selfDiscordID string)
}
