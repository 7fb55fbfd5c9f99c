package trivia

import (
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle stage of a session. It only moves lobby -> live -> ended.
type Status string

const (
	StatusLobby Status = "lobby"
	StatusLive  Status = "live"
	StatusEnded Status = "ended"
)

// CutModeSudden eliminates every player who does not survive a round.
const CutModeSudden = "sudden"

// Config holds per-session rules.
type Config struct {
	CutMode  string  `json:"cutMode"`
	CutParam float64 `json:"cutParam"`
	GraceMs  int64   `json:"graceMs"`
}

// Grace is the late-answer window after the nominal deadline.
func (c Config) Grace() time.Duration {
	return time.Duration(c.GraceMs) * time.Millisecond
}

func (c Config) validate() error {
	if c.CutMode != CutModeSudden {
		return validation("unsupported cutMode %q", c.CutMode)
	}
	if c.CutParam < 0 || c.CutParam > 1 {
		return validation("cutParam must be within [0,1], got %v", c.CutParam)
	}
	if c.GraceMs < 0 {
		return validation("graceMs must not be negative")
	}
	return nil
}

// DefaultPowerUps are handed to every new player.
var DefaultPowerUps = []string{"50-50", "Skip"}

// PowerUp is a named single-use token.
type PowerUp struct {
	Name string `json:"name"`
	Used bool   `json:"used"`
}

// Player is owned by its session and never removed from the roster.
type Player struct {
	ID           string     `json:"id"`
	ConnectionID string     `json:"connectionId"`
	Name         string     `json:"name"`
	IsAlive      bool       `json:"isAlive"`
	Score        int64      `json:"score"`
	PowerUps     []PowerUp  `json:"powerUps"`
	JoinedAt     time.Time  `json:"joinedAt"`
	EliminatedAt *time.Time `json:"eliminatedAt,omitempty"`
	// RejoinToken is handed only to the joining connection. Views never carry it.
	RejoinToken  string     `json:"rejoinToken,omitempty"`
}

// Ref returns the id/name pair used in results.
func (p *Player) Ref() PlayerRef {
	return PlayerRef{ID: p.ID, Name: p.Name}
}

// PlayerRef identifies a player in events and the winner slot.
type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Round is one open question cycle.
type Round struct {
	Index      int       `json:"index"`
	Question   Question  `json:"question"`
	StartedAt  time.Time `json:"startedAt"`
	DeadlineAt time.Time `json:"deadlineAt"`
	Answers    *Ledger   `json:"answers"`
}

// Session is one match. It holds no lock of its own: the Registry serializes every
// access per code.
type Session struct {
	Code             string     `json:"code"`
	Status           Status     `json:"status"`
	Config           Config     `json:"config"`
	Players          []*Player  `json:"players"`
	RoundIndex       int        `json:"roundIndex"`
	CurrentRound     *Round     `json:"currentRound,omitempty"`
	Pot              int        `json:"pot"`
	Questions        []Question `json:"questions"`
	Winner           *PlayerRef `json:"winner,omitempty"`
	HostConnectionID string     `json:"hostConnectionId"`
	HostToken        string     `json:"hostToken,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewSession builds a lobby session owned by hostConnID.
func NewSession(code string, cfg Config, hostConnID string, bank []Question, now time.Time) *Session {
	questions := make([]Question, 0, len(bank))
	for _, q := range bank {
		questions = append(questions, q.Clone())
	}
	return &Session{
		Code:             code,
		Status:           StatusLobby,
		Config:           cfg,
		Players:          []*Player{},
		RoundIndex:       -1,
		Questions:        questions,
		HostConnectionID: hostConnID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsHost reports whether connID holds the host role.
func (s *Session) IsHost(connID string) bool {
	return connID != "" && connID == s.HostConnectionID
}

// AttachHost binds the host role to connID when token matches the host token issued at
// creation.
func (s *Session) AttachHost(connID, token string, now time.Time) error {
	if connID == "" || token == "" || s.HostToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.HostToken)) != 1 {
		return unauthorized("host token does not match")
	}
	s.HostConnectionID = connID
	s.UpdatedAt = now
	return nil
}

// PlayerByRejoinToken finds the player holding token.
func (s *Session) PlayerByRejoinToken(token string) (*Player, bool) {
	if token == "" {
		return nil, false
	}
	for _, p := range s.Players {
		if subtle.ConstantTimeCompare([]byte(token), []byte(p.RejoinToken)) == 1 {
			return p, true
		}
	}
	return nil, false
}

// PlayerByConnection finds the player bound to connID.
func (s *Session) PlayerByConnection(connID string) (*Player, bool) {
	for _, p := range s.Players {
		if p.ConnectionID == connID {
			return p, true
		}
	}
	return nil, false
}

// PlayerByID finds a player by id.
func (s *Session) PlayerByID(id string) (*Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// AlivePlayers returns the alive players in roster order.
func (s *Session) AlivePlayers() []*Player {
	alive := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.IsAlive {
			alive = append(alive, p)
		}
	}
	return alive
}

// AddPlayer joins a player, or rebinds an existing one. A player is matched first by
// connection, then by rejoinToken. newID and newToken are used only when a new player is
// created; an unknown rejoinToken falls through to a fresh join.
func (s *Session) AddPlayer(name, connID, rejoinToken, newID, newToken string, now time.Time) (*Player, error) {
	if s.Status == StatusEnded {
		return nil, invalidState("game already ended")
	}
	if existing, ok := s.PlayerByConnection(connID); ok {
		return existing, nil
	}
	if existing, ok := s.PlayerByRejoinToken(rejoinToken); ok {
		existing.ConnectionID = connID
		s.UpdatedAt = now
		return existing, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation("player name is required")
	}

	powerUps := make([]PowerUp, 0, len(DefaultPowerUps))
	for _, pu := range DefaultPowerUps {
		powerUps = append(powerUps, PowerUp{Name: pu})
	}

	p := &Player{
		ID:           newID,
		ConnectionID: connID,
		Name:         name,
		IsAlive:      true,
		PowerUps:     powerUps,
		JoinedAt:     now,
		RejoinToken:  newToken,
	}
	s.Players = append(s.Players, p)
	s.UpdatedAt = now
	return p, nil
}

// StartRound opens the next round. A nil question picks the next bank question cyclically.
func (s *Session) StartRound(q *Question, caller string, now time.Time) (*Round, error) {
	if !s.IsHost(caller) {
		return nil, unauthorized("only the host can start a round")
	}
	if s.Status == StatusEnded {
		return nil, invalidState("game already ended")
	}
	if s.CurrentRound != nil {
		return nil, invalidState("round %d is still open", s.CurrentRound.Index)
	}

	var question Question
	if q == nil {
		if len(s.Questions) == 0 {
			return nil, &Error{Kind: KindNoQuestionAvailable, Reason: "no questions available for this game"}
		}
		question = s.Questions[(s.RoundIndex+1)%len(s.Questions)].Clone()
	} else {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		question = q.Clone()
	}

	s.Status = StatusLive
	s.RoundIndex++
	s.CurrentRound = &Round{
		Index:      s.RoundIndex,
		Question:   question,
		StartedAt:  now,
		DeadlineAt: now.Add(time.Duration(question.TimeMs) * time.Millisecond),
		Answers:    NewLedger(),
	}
	s.UpdatedAt = now
	return s.CurrentRound, nil
}

// Submit records an answer for the open round.
func (s *Session) Submit(roundIndex int, connID string, payload Payload, now time.Time) (*Answer, error) {
	p, ok := s.PlayerByConnection(connID)
	if !ok {
		return nil, notFound("player not found")
	}
	if s.Status != StatusLive {
		return nil, invalidState("game is not live")
	}
	r := s.CurrentRound
	if r == nil || r.Index != roundIndex {
		return nil, invalidState("round %d is not active", roundIndex)
	}
	if !p.IsAlive {
		return nil, invalidState("player is not alive")
	}
	if err := checkPayload(r.Question, payload); err != nil {
		return nil, err
	}

	a := Answer{
		PlayerID:   p.ID,
		ReceivedAt: now,
		IsLate:     now.After(r.DeadlineAt.Add(s.Config.Grace())),
		Payload:    payload,
	}
	if choice, ok := payload.(MCQAnswer); ok {
		a.IsCorrect = choice.ChoiceIndex == r.Question.MCQ.CorrectIndex
	}
	r.Answers.Record(a)
	s.UpdatedAt = now
	return &a, nil
}

// RoundResult is what a resolution produced.
type RoundResult struct {
	Index      int
	Eliminated []PlayerRef
	Survivors  []*Player
	Winner     *PlayerRef
	Pot        int
}

// Resolve closes round roundIndex. It reports false, changing nothing, when that round is
// no longer the open one.
func (s *Session) Resolve(roundIndex int, now time.Time) (*RoundResult, bool) {
	r := s.CurrentRound
	if r == nil || r.Index != roundIndex {
		return nil, false
	}

	alive := s.AlivePlayers()
	outcome := Resolve(r.Question, r.StartedAt, alive, r.Answers)

	for id, delta := range outcome.ScoreDelta {
		if p, ok := s.PlayerByID(id); ok {
			p.Score += delta
		}
		if a, ok := r.Answers.Get(id); ok {
			a.Score = delta
			// Estimate answers are never correct at submit time; surviving is what counts.
			if r.Question.Kind == KindEstimate {
				a.IsCorrect = true
			}
		}
	}

	result := &RoundResult{Index: r.Index}
	for _, p := range alive {
		if outcome.survives(p.ID) {
			continue
		}
		eliminatedAt := now
		p.IsAlive = false
		p.EliminatedAt = &eliminatedAt
		result.Eliminated = append(result.Eliminated, p.Ref())
	}
	s.Pot += len(result.Eliminated)

	stillAlive := s.AlivePlayers()
	switch len(stillAlive) {
	case 0:
		s.Status = StatusEnded
		s.Winner = nil
	case 1:
		s.Status = StatusEnded
		w := stillAlive[0].Ref()
		s.Winner = &w
	}

	s.CurrentRound = nil
	s.UpdatedAt = now

	result.Survivors = stillAlive
	result.Winner = s.Winner
	result.Pot = s.Pot
	return result, true
}

// End force-ends the match without naming a winner.
func (s *Session) End(caller string, now time.Time) error {
	if !s.IsHost(caller) {
		return unauthorized("only the host can end the game")
	}
	s.Status = StatusEnded
	s.CurrentRound = nil
	s.UpdatedAt = now
	return nil
}

// UsePowerUp spends one unused power-up of the player bound to connID.
func (s *Session) UsePowerUp(connID, name string, now time.Time) (*Player, error) {
	p, ok := s.PlayerByConnection(connID)
	if !ok {
		return nil, notFound("player not found")
	}
	if s.Status == StatusEnded {
		return nil, invalidState("game already ended")
	}
	if !p.IsAlive {
		return nil, invalidState("player is not alive")
	}
	for i := range p.PowerUps {
		if p.PowerUps[i].Name == name && !p.PowerUps[i].Used {
			p.PowerUps[i].Used = true
			s.UpdatedAt = now
			return p, nil
		}
	}
	return nil, invalidState("power-up %q not available", name)
}

// Snapshot serializes the full internal state, answers included.
func (s *Session) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// RestoreSession decodes a snapshot produced by Snapshot.
func RestoreSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
