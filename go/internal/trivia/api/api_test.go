package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/knockout/go/internal/questionbank"
	"github.com/mcdev12/knockout/go/internal/trivia"
	"github.com/mcdev12/knockout/go/internal/trivia/events"
	"github.com/mcdev12/knockout/go/internal/trivia/store"
)

type fixture struct {
	srv     *httptest.Server
	engine  *trivia.Engine
	history *store.MemoryStore
	bank    *questionbank.App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	history := store.NewMemoryStore()
	bank := questionbank.NewApp(questionbank.NewMemoryRepository())
	if _, err := bank.Seed(context.Background(), questionbank.DefaultQuestions()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	engine := trivia.NewEngine(trivia.DefaultEngineConfig(), trivia.Deps{
		Clock:     clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Store:     history,
		Questions: bank,
	})

	mux := http.NewServeMux()
	NewHandler(engine, history, bank).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, engine: engine, history: history, bank: bank}
}

func (f *fixture) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestCreateAndFetchGame(t *testing.T) {
	f := newFixture(t)

	var created trivia.CreateResult
	if status := f.do(t, http.MethodPost, "/api/games", "", &created); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.HostToken == "" || created.State.Code == "" {
		t.Fatalf("unexpected create response %+v", created)
	}

	var state events.SessionState
	if status := f.do(t, http.MethodGet, "/api/games/"+created.State.Code, "", &state); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if state.Status != string(trivia.StatusLobby) {
		t.Fatalf("expected lobby, got %q", state.Status)
	}

	var games []GameSummary
	f.do(t, http.MethodGet, "/api/games", "", &games)
	if len(games) != 1 || games[0].Code != created.State.Code {
		t.Fatalf("expected one stored game, got %+v", games)
	}
}

func TestGetGameFallsBackToHistory(t *testing.T) {
	f := newFixture(t)

	s := trivia.NewSession("424242", trivia.Config{CutMode: trivia.CutModeSudden}, "host", nil, time.Now())
	if _, err := s.AddPlayer("Ada", "c1", "", "p1", "rejoin-secret", time.Now()); err != nil {
		t.Fatalf("add player: %v", err)
	}
	s.HostToken = "host-secret"
	s.Status = trivia.StatusEnded
	s.Winner = &trivia.PlayerRef{ID: "p1", Name: "Ada"}
	if err := f.history.Save(context.Background(), s); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp, err := http.Get(f.srv.URL + "/api/games/424242")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(body), "secret") {
		t.Fatalf("stored view leaked a token: %s", body)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, leaked := raw["hostConnectionId"]; leaked {
		t.Fatal("stored view leaked the host connection id")
	}
	if !strings.Contains(string(raw["winner"]), "Ada") {
		t.Fatalf("expected Ada as winner, got %s", raw["winner"])
	}

	if status := f.do(t, http.MethodGet, "/api/games/000000", "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	for i, name := range []string{"Ada", "Grace", "Ada"} {
		s := trivia.NewSession(string(rune('a'+i))+"00000", trivia.Config{CutMode: trivia.CutModeSudden}, "host", nil, time.Now())
		s.Status = trivia.StatusEnded
		s.Winner = &trivia.PlayerRef{ID: name, Name: name}
		if err := f.history.Save(context.Background(), s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	var entries []store.LeaderboardEntry
	f.do(t, http.MethodGet, "/api/leaderboard", "", &entries)
	if len(entries) != 2 || entries[0].Name != "Ada" || entries[0].Wins != 2 {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
}

func TestQuestionCRUD(t *testing.T) {
	f := newFixture(t)

	var created trivia.Question
	body := `{"kind":"mcq","body":"Capital of Peru?","mcq":{"options":["Lima","Quito"],"correctIndex":0}}`
	if status := f.do(t, http.MethodPost, "/api/questions", body, &created); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.ID == "" || created.TimeMs != trivia.DefaultQuestionTimeMs {
		t.Fatalf("expected id and default time limit, got %+v", created)
	}

	update := `{"kind":"estimate","body":"Height of Everest in m?","timeMs":15000,"estimate":{"correctValue":8849}}`
	var updated trivia.Question
	if status := f.do(t, http.MethodPut, "/api/questions/"+created.ID, update, &updated); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if updated.Kind != trivia.KindEstimate || updated.ID != created.ID {
		t.Fatalf("unexpected update %+v", updated)
	}

	if status := f.do(t, http.MethodDelete, "/api/questions/"+created.ID, "", nil); status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}
	if status := f.do(t, http.MethodGet, "/api/questions/"+created.ID, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}

	var all []trivia.Question
	f.do(t, http.MethodGet, "/api/questions", "", &all)
	if len(all) != len(questionbank.DefaultQuestions()) {
		t.Fatalf("expected %d questions, got %d", len(questionbank.DefaultQuestions()), len(all))
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", trivia.ErrNotFound, http.StatusNotFound},
		{"unauthorized", trivia.ErrUnauthorized, http.StatusForbidden},
		{"invalid state", trivia.ErrInvalidState, http.StatusConflict},
		{"validation", trivia.ErrValidation, http.StatusBadRequest},
		{"no question", trivia.ErrNoQuestionAvailable, http.StatusConflict},
		{"stored game missing", store.ErrNotFound, http.StatusNotFound},
		{"duplicate question", questionbank.ErrDuplicate, http.StatusConflict},
		{"other", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestInvalidQuestionRejected(t *testing.T) {
	f := newFixture(t)
	if status := f.do(t, http.MethodPost, "/api/questions", `{"kind":"mcq","body":"?"}`, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if status := f.do(t, http.MethodGet, "/api/games?limit=500", "", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", status)
	}
}
