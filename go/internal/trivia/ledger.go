package trivia

import "encoding/json"

// Ledger maps player id to that player's answer for one round.
// It is only touched under the owning session's lock.
type Ledger struct {
	entries map[string]*Answer
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*Answer)}
}

// Record upserts the entry for a.PlayerID. A later submission replaces an earlier one,
// except that a late submission never replaces an on-time entry.
func (l *Ledger) Record(a Answer) {
	if prev, ok := l.entries[a.PlayerID]; ok && a.IsLate && !prev.IsLate {
		return
	}
	entry := a
	l.entries[a.PlayerID] = &entry
}

// Get returns the entry for a player, if any.
func (l *Ledger) Get(playerID string) (*Answer, bool) {
	a, ok := l.entries[playerID]
	return a, ok
}

// Len is the number of players with an entry.
func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.entries)
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	entries := make(map[string]*Answer)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if entries == nil {
		entries = make(map[string]*Answer)
	}
	l.entries = entries
	return nil
}
