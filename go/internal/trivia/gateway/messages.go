package gateway

import (
	"encoding/json"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

// Inbound command names.
const (
	CommandCreateGame = "host:createGame"
	CommandAttachHost = "host:attach"
	CommandStartRound = "host:startRound"
	CommandNextRound  = "host:nextRound"
	CommandEndGame    = "host:endGame"
	CommandJoin       = "player:join"
	CommandAnswer     = "player:answer"
	CommandPowerUp    = "player:usePowerUp"
	CommandEmote      = "player:sendEmote"
	CommandGetState   = "game:getState"
)

// Command is one inbound frame. Ack is echoed back on the reply.
type Command struct {
	Event string          `json:"event"`
	Ack   string          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Reply answers a Command on the issuing connection only.
type Reply struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Ack   string      `json:"ack,omitempty"`
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  string      `json:"code,omitempty"`
}

// ReplyType tags Reply frames so clients can tell them from broadcast events.
const ReplyType = "ack"

type createGameData struct {
	Config    *trivia.Config    `json:"config,omitempty"`
	Questions []trivia.Question `json:"questions,omitempty"`
}

type codeData struct {
	Code string `json:"code"`
}

type attachData struct {
	Code      string `json:"code"`
	HostToken string `json:"hostToken"`
}

type joinData struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	RejoinToken string `json:"rejoinToken,omitempty"`
}

type startRoundData struct {
	Code     string           `json:"code"`
	Question *trivia.Question `json:"question,omitempty"`
}

type answerData struct {
	Code       string `json:"code"`
	RoundIndex int    `json:"roundIndex"`
	trivia.PayloadJSON
}

type powerUpData struct {
	Code        string `json:"code"`
	PowerUpName string `json:"powerUpName"`
}

type emoteData struct {
	Code  string `json:"code"`
	Emote string `json:"emote"`
}
