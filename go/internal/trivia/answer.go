package trivia

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Payload is a submitted answer. It is sealed: only MCQAnswer and EstimateAnswer implement it.
type Payload interface {
	QuestionKind() QuestionKind
	payload()
}

// MCQAnswer picks one option by index.
type MCQAnswer struct {
	ChoiceIndex int
}

func (MCQAnswer) QuestionKind() QuestionKind { return KindMCQ }
func (MCQAnswer) payload()                   {}

// EstimateAnswer is a raw numeric guess.
type EstimateAnswer struct {
	Value float64
}

func (EstimateAnswer) QuestionKind() QuestionKind { return KindEstimate }
func (EstimateAnswer) payload()                   {}

// PayloadJSON is the wire form of a Payload; exactly one field is expected.
type PayloadJSON struct {
	ChoiceIndex *int     `json:"choiceIndex,omitempty"`
	Value       *float64 `json:"value,omitempty"`
}

// Decode turns the wire form into a typed payload.
func (p PayloadJSON) Decode() (Payload, error) {
	switch {
	case p.ChoiceIndex != nil && p.Value != nil:
		return nil, validation("answer must carry either choiceIndex or value, not both")
	case p.ChoiceIndex != nil:
		return MCQAnswer{ChoiceIndex: *p.ChoiceIndex}, nil
	case p.Value != nil:
		return EstimateAnswer{Value: *p.Value}, nil
	default:
		return nil, validation("answer is missing choiceIndex or value")
	}
}

func encodePayload(p Payload) PayloadJSON {
	switch a := p.(type) {
	case MCQAnswer:
		ci := a.ChoiceIndex
		return PayloadJSON{ChoiceIndex: &ci}
	case EstimateAnswer:
		v := a.Value
		return PayloadJSON{Value: &v}
	}
	return PayloadJSON{}
}

// checkPayload validates a payload against the question it answers.
func checkPayload(q Question, p Payload) error {
	if p == nil {
		return validation("answer payload is required")
	}
	if p.QuestionKind() != q.Kind {
		return validation("%s answer submitted to %s question", p.QuestionKind(), q.Kind)
	}
	if e, ok := p.(EstimateAnswer); ok {
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return validation("estimate value must be finite")
		}
	}
	return nil
}

// Answer is one ledger entry.
type Answer struct {
	PlayerID   string
	ReceivedAt time.Time
	IsLate     bool
	Payload    Payload
	IsCorrect  bool
	Score      int64
}

type answerJSON struct {
	PlayerID   string      `json:"playerId"`
	ReceivedAt time.Time   `json:"receivedAt"`
	IsLate     bool        `json:"isLate"`
	Payload    PayloadJSON `json:"payload"`
	IsCorrect  bool        `json:"isCorrect"`
	Score      int64       `json:"score"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(answerJSON{
		PlayerID:   a.PlayerID,
		ReceivedAt: a.ReceivedAt,
		IsLate:     a.IsLate,
		Payload:    encodePayload(a.Payload),
		IsCorrect:  a.IsCorrect,
		Score:      a.Score,
	})
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var aj answerJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	p, err := aj.Payload.Decode()
	if err != nil {
		return fmt.Errorf("decode answer payload: %w", err)
	}
	*a = Answer{
		PlayerID:   aj.PlayerID,
		ReceivedAt: aj.ReceivedAt,
		IsLate:     aj.IsLate,
		Payload:    p,
		IsCorrect:  aj.IsCorrect,
		Score:      aj.Score,
	}
	return nil
}
