package domain

import "time"

// Server-wide event kinds.
const (
	EventDoubleXP          = "double_xp"
	EventCommissionBoost10 = "commission_boost_10"
)

// ActiveEvent is a running time-boxed server event.
type ActiveEvent struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	EndsAt     time.Time `json:"ends_at"`
	Multiplier float64   `json:"multiplier,omitempty"`
	Bonus      float64   `json:"bonus,omitempty"`
	StartedBy  string    `json:"started_by,omitempty"`
}

func (e ActiveEvent) Expired(now time.Time) bool {
	return !now.Before(e.EndsAt)
}

// EventSet maps event id to the running event. Persisted as the system/events document.
type EventSet map[string]ActiveEvent

func (s EventSet) Clone() EventSet {
	out := make(EventSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
