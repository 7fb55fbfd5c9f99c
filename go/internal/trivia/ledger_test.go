package trivia

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLedgerUpsert(t *testing.T) {
	l := NewLedger()
	l.Record(Answer{PlayerID: "p1", ReceivedAt: t0, Payload: MCQAnswer{ChoiceIndex: 0}})
	l.Record(Answer{PlayerID: "p1", ReceivedAt: t0.Add(time.Second), Payload: MCQAnswer{ChoiceIndex: 2}, IsCorrect: true})

	if l.Len() != 1 {
		t.Fatalf("expected one entry, got %d", l.Len())
	}
	a, _ := l.Get("p1")
	if a.Payload != (MCQAnswer{ChoiceIndex: 2}) || !a.IsCorrect {
		t.Fatalf("expected latest on-time answer to win, got %+v", a)
	}
}

func TestLedgerLateDoesNotReplaceOnTime(t *testing.T) {
	l := NewLedger()
	l.Record(Answer{PlayerID: "p1", ReceivedAt: t0, Payload: MCQAnswer{ChoiceIndex: 1}, IsCorrect: true})
	l.Record(Answer{PlayerID: "p1", ReceivedAt: t0.Add(time.Minute), Payload: MCQAnswer{ChoiceIndex: 3}, IsLate: true})

	a, _ := l.Get("p1")
	if a.IsLate || a.Payload != (MCQAnswer{ChoiceIndex: 1}) {
		t.Fatalf("late answer replaced on-time entry: %+v", a)
	}

	l.Record(Answer{PlayerID: "p2", ReceivedAt: t0.Add(time.Minute), Payload: MCQAnswer{ChoiceIndex: 3}, IsLate: true})
	if a, ok := l.Get("p2"); !ok || !a.IsLate {
		t.Fatalf("expected late answer to be recorded and flagged")
	}
}

func TestLedgerJSONKeepsPayloadVariant(t *testing.T) {
	l := NewLedger()
	l.Record(Answer{PlayerID: "p1", ReceivedAt: t0, Payload: EstimateAnswer{Value: 12.5}})
	l.Record(Answer{PlayerID: "p2", ReceivedAt: t0, Payload: MCQAnswer{ChoiceIndex: 0}})

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Ledger
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	a, _ := back.Get("p1")
	if _, ok := a.Payload.(EstimateAnswer); !ok {
		t.Fatalf("expected estimate payload, got %T", a.Payload)
	}
	b, _ := back.Get("p2")
	if _, ok := b.Payload.(MCQAnswer); !ok {
		t.Fatalf("expected mcq payload, got %T", b.Payload)
	}
}

func TestPayloadDecode(t *testing.T) {
	idx := 1
	val := 3.0
	if _, err := (PayloadJSON{ChoiceIndex: &idx, Value: &val}).Decode(); err == nil {
		t.Fatalf("expected error when both fields are set")
	}
	if _, err := (PayloadJSON{}).Decode(); err == nil {
		t.Fatalf("expected error when no field is set")
	}
	p, err := PayloadJSON{Value: &val}.Decode()
	if err != nil || p != (EstimateAnswer{Value: 3}) {
		t.Fatalf("unexpected decode result %v, %v", p, err)
	}
}
