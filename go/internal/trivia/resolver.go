package trivia

import (
	"math"
	"time"
)

// EstimateWinnerBonus is added to the score of the sole estimate survivor.
const EstimateWinnerBonus int64 = 1000

// Outcome is the pure result of resolving a closed round.
type Outcome struct {
	// Survivors in roster order.
	Survivors []string
	// ScoreDelta per surviving player id.
	ScoreDelta map[string]int64
}

func (o Outcome) survives(playerID string) bool {
	for _, id := range o.Survivors {
		if id == playerID {
			return true
		}
	}
	return false
}

// Resolve decides who survives a round. alive is the roster of players alive at close, in
// roster order. It does not mutate its inputs.
func Resolve(q Question, startedAt time.Time, alive []*Player, ledger *Ledger) Outcome {
	out := Outcome{ScoreDelta: make(map[string]int64)}
	if ledger == nil {
		ledger = NewLedger()
	}

	switch q.Kind {
	case KindMCQ:
		for _, p := range alive {
			a, ok := ledger.Get(p.ID)
			if !ok || a.IsLate || !a.IsCorrect {
				continue
			}
			out.Survivors = append(out.Survivors, p.ID)
			out.ScoreDelta[p.ID] = mcqScore(q, startedAt, a.ReceivedAt)
		}

	case KindEstimate:
		var (
			best     *Player
			bestDist = math.Inf(1)
			bestAt   time.Time
		)
		for _, p := range alive {
			a, ok := ledger.Get(p.ID)
			if !ok || a.IsLate {
				continue
			}
			guess, ok := a.Payload.(EstimateAnswer)
			if !ok {
				continue
			}
			dist := math.Abs(guess.Value - q.Estimate.CorrectValue)
			// Strict comparisons keep the earlier roster entry on a full tie.
			if dist < bestDist || (dist == bestDist && a.ReceivedAt.Before(bestAt)) {
				best, bestDist, bestAt = p, dist, a.ReceivedAt
			}
		}
		if best != nil {
			out.Survivors = []string{best.ID}
			out.ScoreDelta[best.ID] = EstimateWinnerBonus
		}
	}

	return out
}

func mcqScore(q Question, startedAt, receivedAt time.Time) int64 {
	taken := receivedAt.Sub(startedAt).Milliseconds()
	score := q.TimeMs - taken
	if score < 0 {
		return 0
	}
	return score
}
