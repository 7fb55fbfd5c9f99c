package trivia

import "github.com/mcdev12/knockout/go/internal/trivia/events"

// View projects the session into its public state. Correct answers and connection ids stay out.
func (s *Session) View() events.SessionState {
	v := events.SessionState{
		Code:       s.Code,
		Status:     string(s.Status),
		Config:     events.Config(s.Config),
		Players:    make([]events.Player, 0, len(s.Players)),
		RoundIndex: s.RoundIndex,
		Pot:        s.Pot,
		Winner:     refView(s.Winner),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	for _, p := range s.Players {
		v.Players = append(v.Players, p.View())
	}
	if r := s.CurrentRound; r != nil {
		v.CurrentRound = &events.Round{
			Index:      r.Index,
			Question:   r.Question.Public(),
			StartedAt:  r.StartedAt,
			DeadlineAt: r.DeadlineAt,
			Answered:   r.Answers.Len(),
		}
	}
	return v
}

// View projects a player.
func (p *Player) View() events.Player {
	pv := events.Player{
		ID:       p.ID,
		Name:     p.Name,
		IsAlive:  p.IsAlive,
		Score:    p.Score,
		PowerUps: make([]events.PowerUp, 0, len(p.PowerUps)),
		JoinedAt: p.JoinedAt,
	}
	for _, pu := range p.PowerUps {
		pv.PowerUps = append(pv.PowerUps, events.PowerUp(pu))
	}
	if p.EliminatedAt != nil {
		at := *p.EliminatedAt
		pv.EliminatedAt = &at
	}
	return pv
}

func (r *Round) startView() events.RoundStart {
	return events.RoundStart{
		Index:      r.Index,
		Question:   r.Question.Public(),
		StartedAt:  r.StartedAt,
		DeadlineAt: r.DeadlineAt,
	}
}

func (r *RoundResult) view() events.RoundResult {
	v := events.RoundResult{
		Index:      r.Index,
		Eliminated: make([]events.PlayerRef, 0, len(r.Eliminated)),
		Survivors:  make([]events.Survivor, 0, len(r.Survivors)),
		Winner:     refView(r.Winner),
		Pot:        r.Pot,
	}
	for _, ref := range r.Eliminated {
		v.Eliminated = append(v.Eliminated, events.PlayerRef(ref))
	}
	for _, p := range r.Survivors {
		v.Survivors = append(v.Survivors, events.Survivor{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return v
}

func refView(ref *PlayerRef) *events.PlayerRef {
	if ref == nil {
		return nil
	}
	v := events.PlayerRef(*ref)
	return &v
}
