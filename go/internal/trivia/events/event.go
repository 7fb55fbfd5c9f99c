package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope pushed to every subscriber of a session.
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	Code      string          `json:"code"`      // Session join code
	Type      Type            `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// Type names an outbound event.
type Type string

const (
	TypeSessionState Type = "session:state"
	TypeRoundStart   Type = "round:start"
	TypeRoundResult  Type = "round:result"
	TypePowerUpUsed  Type = "game:powerUpUsed"
	TypeEmote        Type = "game:emote"
)

// New wraps payload in an envelope for the session code.
func New(code string, typ Type, payload interface{}, at time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Code:      code,
		Type:      typ,
		Timestamp: at,
		Data:      data,
	}, nil
}

// Decode parses the event data into the payload struct matching its type.
func Decode(ev *Event) (interface{}, error) {
	var payload interface{}
	switch ev.Type {
	case TypeSessionState:
		payload = &SessionState{}
	case TypeRoundStart:
		payload = &RoundStart{}
	case TypeRoundResult:
		payload = &RoundResult{}
	case TypePowerUpUsed:
		payload = &PowerUpUsed{}
	case TypeEmote:
		payload = &Emote{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", ev.Type)
	}
	if err := json.Unmarshal(ev.Data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
