// Package api serves the REST surface: game history, the leaderboard and question bank CRUD.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/knockout/go/internal/questionbank"
	"github.com/mcdev12/knockout/go/internal/trivia"
	"github.com/mcdev12/knockout/go/internal/trivia/events"
	"github.com/mcdev12/knockout/go/internal/trivia/store"
)

const (
	gamesLimit       = 50
	leaderboardLimit = 10
)

// Games is the slice of the engine the REST surface drives.
type Games interface {
	CreateSession(ctx context.Context, req trivia.CreateRequest) (trivia.CreateResult, error)
	State(code string) (events.SessionState, error)
}

// Questions is the question bank app.
type Questions interface {
	ListQuestions(ctx context.Context) ([]trivia.Question, error)
	GetQuestion(ctx context.Context, id string) (trivia.Question, error)
	CreateQuestion(ctx context.Context, q trivia.Question) (trivia.Question, error)
	UpdateQuestion(ctx context.Context, id string, q trivia.Question) (trivia.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

type Handler struct {
	games     Games
	history   store.Store
	questions Questions
}

func NewHandler(games Games, history store.Store, questions Questions) *Handler {
	return &Handler{games: games, history: history, questions: questions}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/games", h.listGames)
	mux.HandleFunc("POST /api/games", h.createGame)
	mux.HandleFunc("GET /api/games/{code}", h.getGame)
	mux.HandleFunc("GET /api/leaderboard", h.leaderboard)

	mux.HandleFunc("GET /api/questions", h.listQuestions)
	mux.HandleFunc("POST /api/questions", h.createQuestion)
	mux.HandleFunc("GET /api/questions/{id}", h.getQuestion)
	mux.HandleFunc("PUT /api/questions/{id}", h.updateQuestion)
	mux.HandleFunc("DELETE /api/questions/{id}", h.deleteQuestion)
}

// GameSummary is one row of the history listing.
type GameSummary struct {
	Code      string            `json:"code"`
	Status    trivia.Status     `json:"status"`
	Winner    *trivia.PlayerRef `json:"winner,omitempty"`
	Players   int               `json:"players"`
	Rounds    int               `json:"rounds"`
	Pot       int               `json:"pot"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func summarize(r store.Record) GameSummary {
	return GameSummary{
		Code:      r.Code,
		Status:    r.Status,
		Winner:    r.Winner,
		Players:   r.Players,
		Rounds:    r.Rounds,
		Pot:       r.Pot,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	limit := gamesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > gamesLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	games := make([]GameSummary, 0, len(records))
	for _, rec := range records {
		games = append(games, summarize(rec))
	}
	writeJSON(w, http.StatusOK, games)
}

type createGameRequest struct {
	Config    *trivia.Config    `json:"config,omitempty"`
	Questions []trivia.Question `json:"questions,omitempty"`
}

// createGame opens a lobby on behalf of a host that will attach over the realtime channel
// with the returned hostToken. Until then no connection holds the host role.
func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.games.CreateSession(r.Context(), trivia.CreateRequest{
		HostConnectionID: "http-" + uuid.New().String(),
		Config:           req.Config,
		Questions:        req.Questions,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// getGame prefers the live session and falls back to the last stored snapshot, rendered
// through the public view so answers and connection ids stay private.
func (h *Handler) getGame(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	state, err := h.games.State(code)
	if err == nil {
		writeJSON(w, http.StatusOK, state)
		return
	}
	if !errors.Is(err, trivia.ErrNotFound) {
		writeFailure(w, err)
		return
	}

	rec, err := h.history.Get(r.Context(), code)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s, err := rec.Session()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.Leaderboard(r.Context(), leaderboardLimit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if entries == nil {
		entries = []store.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.questions.ListQuestions(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if qs == nil {
		qs = []trivia.Question{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.questions.GetQuestion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var q trivia.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.questions.CreateQuestion(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var q trivia.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.questions.UpdateQuestion(r.Context(), r.PathValue("id"), q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.questions.DeleteQuestion(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps domain and storage errors onto HTTP statuses. Anything else is a 500.
func statusFor(err error) int {
	switch trivia.KindOf(err) {
	case trivia.KindNotFound:
		return http.StatusNotFound
	case trivia.KindUnauthorized:
		return http.StatusForbidden
	case trivia.KindInvalidState, trivia.KindNoQuestionAvailable:
		return http.StatusConflict
	case trivia.KindValidation:
		return http.StatusBadRequest
	}
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, questionbank.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, questionbank.ErrDuplicate):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: string(trivia.KindOf(err))})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
