package events

import (
	"time"
)

// Payload types shared by the engine and its transports. They carry no correct-answer fields.

// PlayerRef identifies a player.
type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PowerUp is a player's single-use token as seen by clients.
type PowerUp struct {
	Name string `json:"name"`
	Used bool   `json:"used"`
}

// Player is the public view of one roster entry.
type Player struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	IsAlive      bool       `json:"isAlive"`
	Score        int64      `json:"score"`
	PowerUps     []PowerUp  `json:"powerUps"`
	JoinedAt     time.Time  `json:"joinedAt"`
	EliminatedAt *time.Time `json:"eliminatedAt,omitempty"`
}

// Question is the player-facing projection of a question.
type Question struct {
	ID      string   `json:"id"`
	Body    string   `json:"body"`
	Options []string `json:"options,omitempty"`
	Kind    string   `json:"kind"`
	TimeMs  int64    `json:"timeMs"`
}

// Config mirrors the session rules.
type Config struct {
	CutMode  string  `json:"cutMode"`
	CutParam float64 `json:"cutParam"`
	GraceMs  int64   `json:"graceMs"`
}

// Round is the open round as seen by clients.
type Round struct {
	Index      int       `json:"index"`
	Question   Question  `json:"question"`
	StartedAt  time.Time `json:"startedAt"`
	DeadlineAt time.Time `json:"deadlineAt"`
	Answered   int       `json:"answered"`
}

// SessionState is the payload of session:state.
type SessionState struct {
	Code         string     `json:"code"`
	Status       string     `json:"status"`
	Config       Config     `json:"config"`
	Players      []Player   `json:"players"`
	RoundIndex   int        `json:"roundIndex"`
	CurrentRound *Round     `json:"currentRound,omitempty"`
	Pot          int        `json:"pot"`
	Winner       *PlayerRef `json:"winner,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// RoundStart is the payload of round:start.
type RoundStart struct {
	Index      int       `json:"index"`
	Question   Question  `json:"question"`
	StartedAt  time.Time `json:"startedAt"`
	DeadlineAt time.Time `json:"deadlineAt"`
}

// Survivor is a player still alive after a round.
type Survivor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

// RoundResult is the payload of round:result.
type RoundResult struct {
	Index      int         `json:"index"`
	Eliminated []PlayerRef `json:"eliminated"`
	Survivors  []Survivor  `json:"survivors"`
	Winner     *PlayerRef  `json:"winner,omitempty"`
	Pot        int         `json:"pot"`
}

// PowerUpUsed is the payload of game:powerUpUsed.
type PowerUpUsed struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	PowerUpName string `json:"powerUpName"`
}

// Emote is the payload of game:emote.
type Emote struct {
	PlayerID string `json:"playerId"`
	Emote    string `json:"emote"`
}
