package trivia

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mcq(id string, correct int) Question {
	return Question{
		ID:     id,
		Kind:   KindMCQ,
		Body:   "question " + id,
		TimeMs: 10000,
		MCQ:    &MCQ{Options: []string{"a", "b", "c", "d"}, CorrectIndex: correct},
	}
}

func estimate(id string, value float64) Question {
	return Question{
		ID:       id,
		Kind:     KindEstimate,
		Body:     "estimate " + id,
		TimeMs:   10000,
		Estimate: &Estimate{CorrectValue: value},
	}
}

func testConfig() Config {
	return Config{CutMode: CutModeSudden, CutParam: 0.2, GraceMs: 300}
}

// lobby builds a session hosted by "host" (host token "host-token") with players p1..pn on
// connections c1..cn holding rejoin tokens r1..rn.
func lobby(t *testing.T, players int, bank ...Question) *Session {
	t.Helper()
	s := NewSession("123456", testConfig(), "host", bank, t0)
	s.HostToken = "host-token"
	for i := 1; i <= players; i++ {
		id := fmt.Sprintf("p%d", i)
		if _, err := s.AddPlayer("Player "+id, fmt.Sprintf("c%d", i), "", id, fmt.Sprintf("r%d", i), t0); err != nil {
			t.Fatalf("add player %s: %v", id, err)
		}
	}
	return s
}

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
	ch     chan *events.Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *events.Event, 512)}
}

func (r *recorder) Broadcast(ev *events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.ch <- ev:
	default:
	}
}

func (r *recorder) count(typ events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// waitFor blocks until an event of typ arrives on the channel.
func (r *recorder) waitFor(t *testing.T, typ events.Type) *events.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return nil
		}
	}
}

type recordingStore struct {
	mu    sync.Mutex
	saves map[string][]Status
}

func newRecordingStore() *recordingStore {
	return &recordingStore{saves: make(map[string][]Status)}
}

func (s *recordingStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves[sess.Code] = append(s.saves[sess.Code], sess.Status)
	return nil
}

func (s *recordingStore) count(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves[code])
}

type staticBank []Question

func (b staticBank) ListQuestions(context.Context) ([]Question, error) {
	return b, nil
}
