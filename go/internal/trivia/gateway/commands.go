package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/knockout/go/internal/trivia"
	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

// Engine is what the gateway needs from the game engine.
type Engine interface {
	CreateSession(ctx context.Context, req trivia.CreateRequest) (trivia.CreateResult, error)
	AttachHost(ctx context.Context, code, connID, hostToken string) (events.SessionState, error)
	JoinSession(ctx context.Context, req trivia.JoinRequest) (trivia.JoinResult, error)
	StartRound(ctx context.Context, code string, q *trivia.Question, caller string) (events.RoundStart, error)
	NextRound(ctx context.Context, code, caller string) (events.RoundStart, error)
	SubmitAnswer(ctx context.Context, code string, roundIndex int, connID string, payload trivia.Payload) (trivia.Receipt, error)
	UsePowerUp(ctx context.Context, code, connID, name string) (events.PowerUpUsed, error)
	SendEmote(ctx context.Context, code, connID, emote string) error
	EndSession(ctx context.Context, code, caller string) (events.SessionState, error)
	State(code string) (events.SessionState, error)
}

// CommandHandler routes inbound commands to the engine and acks each one.
type CommandHandler struct {
	engine  Engine
	manager *ConnectionManager
}

// NewCommandHandler creates a handler bound to engine.
func NewCommandHandler(engine Engine, manager *ConnectionManager) *CommandHandler {
	return &CommandHandler{engine: engine, manager: manager}
}

var errMalformed = errors.New("malformed command")

// HandleMessage implements MessageHandler.
func (h *CommandHandler) HandleMessage(ctx context.Context, c *Connection, message []byte) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil || cmd.Event == "" {
		c.Reply(Reply{Type: ReplyType, OK: false, Error: errMalformed.Error(), Code: string(trivia.KindValidation)})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.manager.config.CommandTimeout)
	defer cancel()

	data, err := h.dispatch(ctx, c, cmd)
	reply := Reply{Type: ReplyType, Event: cmd.Event, Ack: cmd.Ack, OK: err == nil, Data: data}
	if err != nil {
		reply.Data = nil
		reply.Error = err.Error()
		reply.Code = string(trivia.KindOf(err))
		if reply.Code == "" {
			log.Error().Err(err).Str("connection_id", c.ID).Str("event", cmd.Event).Msg("command failed")
			reply.Error = "internal error"
		}
	}
	c.Reply(reply)
}

func (h *CommandHandler) dispatch(ctx context.Context, c *Connection, cmd Command) (interface{}, error) {
	switch cmd.Event {
	case CommandCreateGame:
		var d createGameData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		res, err := h.engine.CreateSession(ctx, trivia.CreateRequest{
			HostConnectionID: c.ID,
			Config:           d.Config,
			Questions:        d.Questions,
		})
		if err != nil {
			return nil, err
		}
		h.manager.Subscribe(c, res.State.Code)
		return res, nil

	case CommandAttachHost:
		var d attachData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		state, err := h.engine.AttachHost(ctx, d.Code, c.ID, d.HostToken)
		if err != nil {
			return nil, err
		}
		h.manager.Subscribe(c, d.Code)
		return state, nil

	case CommandJoin:
		var d joinData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		res, err := h.engine.JoinSession(ctx, trivia.JoinRequest{
			Code:         d.Code,
			Name:         d.Name,
			ConnectionID: c.ID,
			RejoinToken:  d.RejoinToken,
		})
		if err != nil {
			return nil, err
		}
		h.manager.Subscribe(c, d.Code)
		return res, nil

	case CommandStartRound:
		var d startRoundData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		return h.engine.StartRound(ctx, d.Code, d.Question, c.ID)

	case CommandNextRound:
		var d codeData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		return h.engine.NextRound(ctx, d.Code, c.ID)

	case CommandAnswer:
		var d answerData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		payload, err := d.PayloadJSON.Decode()
		if err != nil {
			return nil, err
		}
		return h.engine.SubmitAnswer(ctx, d.Code, d.RoundIndex, c.ID, payload)

	case CommandPowerUp:
		var d powerUpData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		return h.engine.UsePowerUp(ctx, d.Code, c.ID, d.PowerUpName)

	case CommandEmote:
		var d emoteData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		return nil, h.engine.SendEmote(ctx, d.Code, c.ID, d.Emote)

	case CommandEndGame:
		var d codeData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		return h.engine.EndSession(ctx, d.Code, c.ID)

	case CommandGetState:
		var d codeData
		if err := decode(cmd.Data, &d); err != nil {
			return nil, err
		}
		return h.engine.State(d.Code)
	}

	return nil, &trivia.Error{Kind: trivia.KindValidation, Reason: "unknown event " + cmd.Event}
}

func decode(data json.RawMessage, into interface{}) error {
	if len(data) == 0 {
		return &trivia.Error{Kind: trivia.KindValidation, Reason: "missing data"}
	}
	if err := json.Unmarshal(data, into); err != nil {
		return &trivia.Error{Kind: trivia.KindValidation, Reason: "invalid data: " + err.Error()}
	}
	return nil
}
