package trivia

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

// MaxNameLength caps player display names, in runes.
const MaxNameLength = 32

// SessionStore persists session snapshots. Save is called inside the session's critical
// section after every mutation, so writes for one code are strictly ordered.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
}

// Archiver receives the final snapshot of an ended session.
type Archiver interface {
	Archive(ctx context.Context, code string, snapshot []byte) error
}

// QuestionSource supplies the bank copied into each new session.
type QuestionSource interface {
	ListQuestions(ctx context.Context) ([]Question, error)
}

// EngineConfig holds engine-wide settings.
type EngineConfig struct {
	// Defaults applies to sessions created without explicit rules.
	Defaults Config
	// SessionTTL removes any session older than this. Zero disables.
	SessionTTL time.Duration
	// EndedTTL removes ended sessions idle for this long. Zero disables.
	EndedTTL time.Duration
	// IOTimeout bounds each store save and archive upload.
	IOTimeout time.Duration
}

// DefaultEngineConfig returns the stock rules: sudden death with a 300ms grace window.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Defaults: Config{
			CutMode:  CutModeSudden,
			CutParam: 0.2,
			GraceMs:  300,
		},
		SessionTTL: 24 * time.Hour,
		EndedTTL:   30 * time.Minute,
		IOTimeout:  5 * time.Second,
	}
}

// Deps are the engine's collaborators. Nil members are replaced by no-ops.
type Deps struct {
	Clock       clockwork.Clock
	Store       SessionStore
	Broadcaster Broadcaster
	Archiver    Archiver
	Questions   QuestionSource
	NewID       func() string
	// NewToken issues host and rejoin tokens. Defaults to a random uuid.
	NewToken    func() string
}

// Engine runs every inbound operation against the registry, one writer per code.
type Engine struct {
	config      EngineConfig
	registry    *Registry
	clock       clockwork.Clock
	timer       *RoundTimer
	store       SessionStore
	broadcaster Broadcaster
	archiver    Archiver
	questions   QuestionSource
	newID       func() string
	newToken    func() string
}

// NewEngine wires an engine around a fresh registry.
func NewEngine(config EngineConfig, deps Deps) *Engine {
	e := &Engine{
		config:      config,
		registry:    NewRegistry(),
		clock:       deps.Clock,
		store:       deps.Store,
		broadcaster: deps.Broadcaster,
		archiver:    deps.Archiver,
		questions:   deps.Questions,
		newID:       deps.NewID,
		newToken:    deps.NewToken,
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.broadcaster == nil {
		e.broadcaster = nopBroadcaster{}
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}
	if e.newToken == nil {
		e.newToken = func() string { return uuid.New().String() }
	}
	if e.config.IOTimeout <= 0 {
		e.config.IOTimeout = 5 * time.Second
	}
	e.timer = NewRoundTimer(e.clock, e.resolveRound)
	return e
}

// Registry exposes the live sessions.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// CreateRequest opens a new session.
type CreateRequest struct {
	HostConnectionID string
	// Config overrides the engine defaults when set. An empty CutMode keeps the default.
	Config *Config
	// Questions replaces the shared bank when non-nil.
	Questions []Question
}

// CreateResult is returned only to the creator. HostToken lets another connection take
// over the host role through AttachHost.
type CreateResult struct {
	HostToken string              `json:"hostToken"`
	State     events.SessionState `json:"state"`
}

// CreateSession registers a lobby session owned by the requesting connection.
func (e *Engine) CreateSession(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if req.HostConnectionID == "" {
		return CreateResult{}, validation("host connection id is required")
	}

	cfg := e.config.Defaults
	if req.Config != nil {
		cfg = *req.Config
		if cfg.CutMode == "" {
			cfg.CutMode = e.config.Defaults.CutMode
		}
	}
	if err := cfg.validate(); err != nil {
		return CreateResult{}, err
	}

	bank := req.Questions
	if bank == nil && e.questions != nil {
		var err error
		bank, err = e.questions.ListQuestions(ctx)
		if err != nil {
			return CreateResult{}, fmt.Errorf("failed to load question bank: %w", err)
		}
	}
	for i, q := range bank {
		if err := q.Validate(); err != nil {
			return CreateResult{}, validation("question %d: %s", i, err.Error())
		}
	}

	now := e.clock.Now()
	token := e.newToken()
	code := e.registry.Create(func(code string) *Session {
		s := NewSession(code, cfg, req.HostConnectionID, bank, now)
		s.HostToken = token
		return s
	})

	var state events.SessionState
	err := e.registry.Do(code, func(s *Session) error {
		e.persist(s)
		state = s.View()
		e.publish(code, events.TypeSessionState, state)
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	log.Info().
		Str("code", code).
		Str("host_connection_id", req.HostConnectionID).
		Int("questions", len(bank)).
		Msg("game created")
	return CreateResult{HostToken: token, State: state}, nil
}

// AttachHost rebinds the host role to connID when hostToken matches the one issued by
// CreateSession.
func (e *Engine) AttachHost(ctx context.Context, code, connID, hostToken string) (events.SessionState, error) {
	if connID == "" {
		return events.SessionState{}, validation("connection id is required")
	}
	var state events.SessionState
	err := e.registry.Do(code, func(s *Session) error {
		if err := s.AttachHost(connID, hostToken, e.clock.Now()); err != nil {
			log.Warn().Str("code", code).Str("connection_id", connID).Msg("host attach rejected")
			return err
		}
		e.persist(s)
		state = s.View()
		return nil
	})
	if err == nil {
		log.Info().Str("code", code).Str("connection_id", connID).Msg("host attached")
	}
	return state, err
}

// JoinRequest adds a player. RejoinToken, when it matches, reclaims an existing player
// after a reconnect.
type JoinRequest struct {
	Code         string
	Name         string
	ConnectionID string
	RejoinToken  string
}

// JoinResult is returned to the joining connection only.
type JoinResult struct {
	Player      events.Player       `json:"player"`
	RejoinToken string              `json:"rejoinToken"`
	State       events.SessionState `json:"state"`
}

// JoinSession adds or rebinds a player and pushes the new state.
func (e *Engine) JoinSession(ctx context.Context, req JoinRequest) (JoinResult, error) {
	if req.ConnectionID == "" {
		return JoinResult{}, validation("connection id is required")
	}
	name, err := normalizeName(req.Name)
	if err != nil && req.RejoinToken == "" {
		return JoinResult{}, err
	}

	var res JoinResult
	err = e.registry.Do(req.Code, func(s *Session) error {
		p, err := s.AddPlayer(name, req.ConnectionID, req.RejoinToken, e.newID(), e.newToken(), e.clock.Now())
		if err != nil {
			return err
		}
		e.persist(s)
		res.Player = p.View()
		res.RejoinToken = p.RejoinToken
		res.State = s.View()
		e.publish(s.Code, events.TypeSessionState, res.State)
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	log.Info().
		Str("code", req.Code).
		Str("player_id", res.Player.ID).
		Str("name", res.Player.Name).
		Msg("player joined")
	return res, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return "", validation("player name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name, nil
}

// StartRound opens a round with q, or the next bank question when q is nil.
func (e *Engine) StartRound(ctx context.Context, code string, q *Question, caller string) (events.RoundStart, error) {
	var start events.RoundStart
	err := e.registry.Do(code, func(s *Session) error {
		r, err := s.StartRound(q, caller, e.clock.Now())
		if err != nil {
			return err
		}
		e.timer.Arm(code, r.Index, fireAt(r, s.Config))
		e.persist(s)
		start = r.startView()
		e.publish(code, events.TypeRoundStart, start)
		e.publish(code, events.TypeSessionState, s.View())
		return nil
	})
	if err != nil {
		return events.RoundStart{}, err
	}

	log.Info().
		Str("code", code).
		Int("round", start.Index).
		Str("question_id", start.Question.ID).
		Time("deadline", start.DeadlineAt).
		Msg("round started")
	return start, nil
}

// NextRound starts a round with the next bank question.
func (e *Engine) NextRound(ctx context.Context, code, caller string) (events.RoundStart, error) {
	return e.StartRound(ctx, code, nil, caller)
}

// Receipt acknowledges a recorded answer.
type Receipt struct {
	RoundIndex int       `json:"roundIndex"`
	ReceivedAt time.Time `json:"receivedAt"`
	IsLate     bool      `json:"isLate"`
}

// SubmitAnswer records the player's answer for roundIndex.
func (e *Engine) SubmitAnswer(ctx context.Context, code string, roundIndex int, connID string, payload Payload) (Receipt, error) {
	var receipt Receipt
	err := e.registry.Do(code, func(s *Session) error {
		a, err := s.Submit(roundIndex, connID, payload, e.clock.Now())
		if err != nil {
			return err
		}
		e.persist(s)
		receipt = Receipt{RoundIndex: roundIndex, ReceivedAt: a.ReceivedAt, IsLate: a.IsLate}
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("code", code).Int("round", roundIndex).Msg("answer rejected")
		return Receipt{}, err
	}
	return receipt, nil
}

// UsePowerUp spends one of the player's power-ups and announces it.
func (e *Engine) UsePowerUp(ctx context.Context, code, connID, name string) (events.PowerUpUsed, error) {
	var used events.PowerUpUsed
	err := e.registry.Do(code, func(s *Session) error {
		p, err := s.UsePowerUp(connID, name, e.clock.Now())
		if err != nil {
			return err
		}
		e.persist(s)
		used = events.PowerUpUsed{PlayerID: p.ID, PlayerName: p.Name, PowerUpName: name}
		e.publish(code, events.TypePowerUpUsed, used)
		return nil
	})
	if err != nil {
		return events.PowerUpUsed{}, err
	}
	log.Info().Str("code", code).Str("player_id", used.PlayerID).Str("power_up", name).Msg("power-up used")
	return used, nil
}

// SendEmote relays an emote from a player. Nothing is stored.
func (e *Engine) SendEmote(ctx context.Context, code, connID, emote string) error {
	emote = strings.TrimSpace(emote)
	if emote == "" {
		return validation("emote is required")
	}
	return e.registry.Do(code, func(s *Session) error {
		p, ok := s.PlayerByConnection(connID)
		if !ok {
			return notFound("player not found")
		}
		e.publish(code, events.TypeEmote, events.Emote{PlayerID: p.ID, Emote: emote})
		return nil
	})
}

// EndSession force-ends the game. Ending an ended game is a no-op success.
func (e *Engine) EndSession(ctx context.Context, code, caller string) (events.SessionState, error) {
	var state events.SessionState
	err := e.registry.Do(code, func(s *Session) error {
		wasEnded := s.Status == StatusEnded
		if err := s.End(caller, e.clock.Now()); err != nil {
			return err
		}
		state = s.View()
		if wasEnded {
			return nil
		}
		e.persist(s)
		e.publish(code, events.TypeSessionState, state)
		e.archive(s)
		return nil
	})
	if err != nil {
		return events.SessionState{}, err
	}
	log.Info().Str("code", code).Msg("game ended by host")
	return state, nil
}

// State returns the public view of a live session.
func (e *Engine) State(code string) (events.SessionState, error) {
	var state events.SessionState
	err := e.registry.Do(code, func(s *Session) error {
		state = s.View()
		return nil
	})
	return state, err
}

// resolveRound is the timer callback. It runs under the session lock and drops stale fires.
func (e *Engine) resolveRound(code string, roundIndex int) {
	var result *RoundResult
	err := e.registry.Do(code, func(s *Session) error {
		res, ok := s.Resolve(roundIndex, e.clock.Now())
		if !ok {
			log.Debug().Str("code", code).Int("round", roundIndex).Msg("stale round timer ignored")
			return nil
		}
		result = res
		e.persist(s)
		e.publish(code, events.TypeRoundResult, res.view())
		e.publish(code, events.TypeSessionState, s.View())
		if s.Status == StatusEnded {
			e.archive(s)
		}
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("code", code).Int("round", roundIndex).Msg("round timer fired for missing game")
		return
	}
	if result == nil {
		return
	}

	ev := log.Info().
		Str("code", code).
		Int("round", roundIndex).
		Int("eliminated", len(result.Eliminated)).
		Int("survivors", len(result.Survivors))
	if result.Winner != nil {
		ev = ev.Str("winner", result.Winner.Name)
	}
	ev.Msg("round resolved")
}

// Sweep drops sessions past their TTLs and returns the removed codes.
func (e *Engine) Sweep() []string {
	now := e.clock.Now()
	removed := e.registry.RemoveIf(func(s *Session) bool {
		if e.config.SessionTTL > 0 && now.Sub(s.CreatedAt) > e.config.SessionTTL {
			return true
		}
		return e.config.EndedTTL > 0 && s.Status == StatusEnded && now.Sub(s.UpdatedAt) > e.config.EndedTTL
	})
	if len(removed) > 0 {
		log.Info().Strs("codes", removed).Msg("swept expired games")
	}
	return removed
}

func (e *Engine) persist(s *Session) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.config.IOTimeout)
	defer cancel()
	if err := e.store.Save(ctx, s); err != nil {
		log.Error().Err(err).Str("code", s.Code).Msg("failed to save session")
	}
}

func (e *Engine) publish(code string, typ events.Type, payload interface{}) {
	ev, err := events.New(code, typ, payload, e.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("code", code).Str("event_type", string(typ)).Msg("failed to build event")
		return
	}
	e.broadcaster.Broadcast(ev)
}

// archive uploads the final snapshot off the session lock.
func (e *Engine) archive(s *Session) {
	if e.archiver == nil {
		return
	}
	snapshot, err := s.Snapshot()
	if err != nil {
		log.Error().Err(err).Str("code", s.Code).Msg("failed to snapshot session for archive")
		return
	}
	code := s.Code
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.config.IOTimeout)
		defer cancel()
		if err := e.archiver.Archive(ctx, code, snapshot); err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to archive session")
		}
	}()
}
