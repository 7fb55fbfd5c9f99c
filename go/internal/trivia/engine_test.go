package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

type engineFixture struct {
	engine *Engine
	clock  *clockwork.FakeClock
	rec    *recorder
	store  *recordingStore
	// hostTokens by session code, as returned to the creator.
	hostTokens map[string]string
}

func newFixture(t *testing.T, bank ...Question) *engineFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	rec := newRecorder()
	store := newRecordingStore()
	var n int
	var mu sync.Mutex
	e := NewEngine(DefaultEngineConfig(), Deps{
		Clock:       clock,
		Store:       store,
		Broadcaster: rec,
		Questions:   staticBank(bank),
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("p%d", n)
		},
	})
	return &engineFixture{engine: e, clock: clock, rec: rec, store: store, hostTokens: make(map[string]string)}
}

func (f *engineFixture) create(t *testing.T, players int) string {
	t.Helper()
	ctx := context.Background()
	created, err := f.engine.CreateSession(ctx, CreateRequest{HostConnectionID: "host"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	state := created.State
	f.hostTokens[state.Code] = created.HostToken
	for i := 1; i <= players; i++ {
		_, err := f.engine.JoinSession(ctx, JoinRequest{
			Code:         state.Code,
			Name:         fmt.Sprintf("Player %d", i),
			ConnectionID: fmt.Sprintf("c%d", i),
		})
		if err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	return state.Code
}

func decode(t *testing.T, ev *events.Event, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(ev.Data, into); err != nil {
		t.Fatalf("decode %s: %v", ev.Type, err)
	}
}

func TestEngineRoundLifecycle(t *testing.T) {
	f := newFixture(t, mcq("q1", 2))
	ctx := context.Background()
	code := f.create(t, 3)

	start, err := f.engine.NextRound(ctx, code, "host")
	if err != nil {
		t.Fatalf("next round: %v", err)
	}
	if start.Index != 0 || !start.DeadlineAt.Equal(t0.Add(10*time.Second)) {
		t.Fatalf("unexpected round start: %+v", start)
	}
	ev := f.rec.waitFor(t, events.TypeRoundStart)
	var broadcastStart events.RoundStart
	decode(t, ev, &broadcastStart)
	if diff := cmp.Diff(start, broadcastStart); diff != "" {
		t.Fatalf("broadcast start mismatch (-want +got):\n%s", diff)
	}

	f.clock.Advance(2 * time.Second)
	if _, err := f.engine.SubmitAnswer(ctx, code, 0, "c1", MCQAnswer{ChoiceIndex: 2}); err != nil {
		t.Fatalf("submit c1: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, code, 0, "c2", MCQAnswer{ChoiceIndex: 0}); err != nil {
		t.Fatalf("submit c2: %v", err)
	}

	f.clock.Advance(8*time.Second + 300*time.Millisecond + ResolutionSlack)
	ev = f.rec.waitFor(t, events.TypeRoundResult)

	var result events.RoundResult
	decode(t, ev, &result)
	want := events.RoundResult{
		Index:      0,
		Eliminated: []events.PlayerRef{{ID: "p2", Name: "Player 2"}, {ID: "p3", Name: "Player 3"}},
		Survivors:  []events.Survivor{{ID: "p1", Name: "Player 1", Score: 8000}},
		Winner:     &events.PlayerRef{ID: "p1", Name: "Player 1"},
		Pot:        2,
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Fatalf("round result mismatch (-want +got):\n%s", diff)
	}

	state, err := f.engine.State(code)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Status != string(StatusEnded) || state.Winner == nil || state.Winner.ID != "p1" {
		t.Fatalf("unexpected final state: %+v", state)
	}
	if f.rec.count(events.TypeRoundResult) != 1 {
		t.Fatalf("expected exactly one round result")
	}
}

func TestEngineEndBeforeTimerMakesFireStale(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	code := f.create(t, 2)

	fired := make(chan struct{}, 1)
	f.engine.timer = NewRoundTimer(f.clock, func(code string, roundIndex int) {
		f.engine.resolveRound(code, roundIndex)
		fired <- struct{}{}
	})

	if _, err := f.engine.NextRound(ctx, code, "host"); err != nil {
		t.Fatalf("next round: %v", err)
	}
	if _, err := f.engine.EndSession(ctx, code, "c1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized end, got %v", err)
	}
	if _, err := f.engine.EndSession(ctx, code, "host"); err != nil {
		t.Fatalf("end: %v", err)
	}

	saves := f.store.count(code)
	f.clock.Advance(time.Minute)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("round timer never fired")
	}
	if f.rec.count(events.TypeRoundResult) != 0 {
		t.Fatalf("stale timer produced a result")
	}
	if f.store.count(code) != saves {
		t.Fatalf("stale timer persisted state")
	}
}

func TestEngineConcurrentSubmissions(t *testing.T) {
	const players = 50
	f := newFixture(t, mcq("q1", 1))
	ctx := context.Background()
	code := f.create(t, players)

	if _, err := f.engine.NextRound(ctx, code, "host"); err != nil {
		t.Fatalf("next round: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, players)
	for i := 1; i <= players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			choice := 1
			if i%2 == 0 {
				choice = 0
			}
			_, err := f.engine.SubmitAnswer(ctx, code, 0, fmt.Sprintf("c%d", i), MCQAnswer{ChoiceIndex: choice})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	state, _ := f.engine.State(code)
	if state.CurrentRound == nil || state.CurrentRound.Answered != players {
		t.Fatalf("expected %d answers, got %+v", players, state.CurrentRound)
	}

	f.clock.Advance(11 * time.Second)
	var result events.RoundResult
	decode(t, f.rec.waitFor(t, events.TypeRoundResult), &result)
	if len(result.Survivors) != players/2 || len(result.Eliminated) != players/2 {
		t.Fatalf("expected an even split, got %d survivors %d eliminated", len(result.Survivors), len(result.Eliminated))
	}
}

func TestEngineLateAnswerEliminated(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	code := f.create(t, 3)

	if _, err := f.engine.NextRound(ctx, code, "host"); err != nil {
		t.Fatalf("next round: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, code, 0, "c1", MCQAnswer{ChoiceIndex: 0}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, code, 0, "c2", MCQAnswer{ChoiceIndex: 0}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A submission racing the fire: past deadline+grace but before the slack elapses.
	f.clock.Advance(10*time.Second + 305*time.Millisecond)
	receipt, err := f.engine.SubmitAnswer(ctx, code, 0, "c3", MCQAnswer{ChoiceIndex: 0})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !receipt.IsLate {
		t.Fatalf("expected late receipt")
	}

	f.clock.Advance(ResolutionSlack)
	var result events.RoundResult
	decode(t, f.rec.waitFor(t, events.TypeRoundResult), &result)
	if len(result.Eliminated) != 1 || result.Eliminated[0].ID != "p3" {
		t.Fatalf("expected late player eliminated, got %+v", result.Eliminated)
	}
}

func TestEngineErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, 1)

	if _, err := f.engine.NextRound(ctx, code, "host"); !errors.Is(err, ErrNoQuestionAvailable) {
		t.Fatalf("expected no question available, got %v", err)
	}
	if _, err := f.engine.NextRound(ctx, "000000", "host"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.engine.JoinSession(ctx, JoinRequest{Code: code, Name: " ", ConnectionID: "cx"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.engine.CreateSession(ctx, CreateRequest{HostConnectionID: "h", Config: &Config{CutParam: 2}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for cutParam, got %v", err)
	}
	if err := f.engine.SendEmote(ctx, code, "nobody", "wave"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEngineAttachHostRequiresHostToken(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	code := f.create(t, 2)

	// A player knows the join code but not the host token.
	if _, err := f.engine.AttachHost(ctx, code, "c1", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized attach without token, got %v", err)
	}
	if _, err := f.engine.AttachHost(ctx, code, "c1", "guess"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized attach with wrong token, got %v", err)
	}
	if _, err := f.engine.NextRound(ctx, code, "c1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("player must not gain host authority, got %v", err)
	}

	if _, err := f.engine.AttachHost(ctx, code, "host2", f.hostTokens[code]); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := f.engine.NextRound(ctx, code, "host"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old host should lose authority, got %v", err)
	}
	if _, err := f.engine.NextRound(ctx, code, "host2"); err != nil {
		t.Fatalf("new host start: %v", err)
	}
}

func TestEnginePowerUpAndEmote(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	code := f.create(t, 2)

	used, err := f.engine.UsePowerUp(ctx, code, "c2", "50-50")
	if err != nil {
		t.Fatalf("power-up: %v", err)
	}
	if used != (events.PowerUpUsed{PlayerID: "p2", PlayerName: "Player 2", PowerUpName: "50-50"}) {
		t.Fatalf("unexpected power-up event: %+v", used)
	}
	f.rec.waitFor(t, events.TypePowerUpUsed)

	if err := f.engine.SendEmote(ctx, code, "c1", "🔥"); err != nil {
		t.Fatalf("emote: %v", err)
	}
	var emote events.Emote
	decode(t, f.rec.waitFor(t, events.TypeEmote), &emote)
	if emote.PlayerID != "p1" || emote.Emote != "🔥" {
		t.Fatalf("unexpected emote: %+v", emote)
	}
}

func TestEngineRejoinKeepsPlayer(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	code := f.create(t, 0)

	joined, err := f.engine.JoinSession(ctx, JoinRequest{Code: code, Name: "Ada", ConnectionID: "c1"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.RejoinToken == "" {
		t.Fatalf("expected a rejoin token")
	}

	res, err := f.engine.JoinSession(ctx, JoinRequest{Code: code, ConnectionID: "c1-new", RejoinToken: joined.RejoinToken})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if res.Player.ID != joined.Player.ID || len(res.State.Players) != 1 {
		t.Fatalf("rejoin created a new player: %+v", res)
	}
	if _, err := f.engine.UsePowerUp(ctx, code, "c1", "Skip"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old connection should no longer act for the player, got %v", err)
	}
}

func TestEngineRejoinWithPublicIDIsANewJoin(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	code := f.create(t, 2)

	// Player ids are public in every session:state broadcast.
	if _, err := f.engine.JoinSession(ctx, JoinRequest{Code: code, ConnectionID: "attacker", RejoinToken: "p2"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	res, err := f.engine.JoinSession(ctx, JoinRequest{Code: code, Name: "Mallory", ConnectionID: "attacker", RejoinToken: "p2"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if res.Player.ID == "p2" || len(res.State.Players) != 3 {
		t.Fatalf("public id rebound an existing player: %+v", res.Player)
	}

	if _, err := f.engine.NextRound(ctx, code, "host"); err != nil {
		t.Fatalf("next round: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, code, 0, "c2", MCQAnswer{ChoiceIndex: 0}); err != nil {
		t.Fatalf("victim submit: %v", err)
	}
	err = f.engine.registry.Do(code, func(s *Session) error {
		if _, ok := s.CurrentRound.Answers.Get("p2"); !ok {
			t.Errorf("victim answer not recorded under p2")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
}

func TestEngineSweep(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	live := f.create(t, 2)
	ended := f.create(t, 2)

	if _, err := f.engine.EndSession(ctx, ended, "host"); err != nil {
		t.Fatalf("end: %v", err)
	}
	f.clock.Advance(31 * time.Minute)

	removed := f.engine.Sweep()
	if diff := cmp.Diff([]string{ended}, removed); diff != "" {
		t.Fatalf("sweep mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.engine.State(ended); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected swept game to be gone, got %v", err)
	}
	if _, err := f.engine.State(live); err != nil {
		t.Fatalf("live game swept: %v", err)
	}

	f.clock.Advance(24 * time.Hour)
	if removed := f.engine.Sweep(); len(removed) != 1 || removed[0] != live {
		t.Fatalf("expected old live game swept, got %v", removed)
	}
}

func TestEnginePersistsEveryMutation(t *testing.T) {
	f := newFixture(t, mcq("q1", 0))
	ctx := context.Background()
	code := f.create(t, 2) // create + 2 joins

	if _, err := f.engine.NextRound(ctx, code, "host"); err != nil {
		t.Fatalf("next round: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, code, 0, "c1", MCQAnswer{ChoiceIndex: 0}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := f.store.count(code); got != 5 {
		t.Fatalf("expected 5 saves, got %d", got)
	}
}
