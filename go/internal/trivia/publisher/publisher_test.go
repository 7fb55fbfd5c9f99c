package publisher

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		typ  events.Type
		want string
	}{
		{events.TypeSessionState, "trivia.123456.session.state"},
		{events.TypeRoundResult, "trivia.123456.round.result"},
		{events.TypePowerUpUsed, "trivia.123456.game.powerUpUsed"},
	}
	for _, tt := range tests {
		got := Subject("trivia", &events.Event{Code: "123456", Type: tt.typ})
		if got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestMessageHeaders(t *testing.T) {
	ev, err := events.New("654321", events.TypeEmote, events.Emote{PlayerID: "p1", Emote: "🔥"}, time.Now())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	msg, err := message("trivia", ev)
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if msg.Header.Get("Event-ID") != ev.ID {
		t.Fatalf("expected event id header %q, got %q", ev.ID, msg.Header.Get("Event-ID"))
	}
	if msg.Header.Get("Session-Code") != "654321" {
		t.Fatalf("unexpected session header %q", msg.Header.Get("Session-Code"))
	}
	if len(msg.Data) == 0 {
		t.Fatal("expected encoded event body")
	}
}

func TestStreamConfigCoversPrefix(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultConfig()}
	sc := p.streamConfig()
	if len(sc.Subjects) != 1 || sc.Subjects[0] != "trivia.>" {
		t.Fatalf("unexpected subjects %v", sc.Subjects)
	}
	if sc.Retention != jetstream.LimitsPolicy {
		t.Fatalf("expected limits retention, got %v", sc.Retention)
	}
	if !sameLimits(sc, sc) {
		t.Fatal("config should equal itself")
	}
}
