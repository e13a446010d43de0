package world

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultMaxEvents bounds the event log when no limit is configured.
const DefaultMaxEvents = 200

// Event categories.
const (
	CategorySystem  = "system"
	CategoryNeeds   = "needs"
	CategoryAction  = "action"
	CategoryNoop    = "noop"
	CategoryTravel  = "travel"
	CategoryEconomy = "economy"
	CategoryBattle  = "battle"
	CategoryCatch   = "catch"
	CategoryGrowth  = "growth"
	CategoryWorld   = "world"
)

// Event is one entry in the world's bounded log.
type Event struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Tick      uint64    `json:"tick"`
	Day       int       `json:"day"`
	Category  string    `json:"category"`
	TrainerID string    `json:"trainer_id,omitempty"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Log appends an event, dropping the oldest entries beyond MaxEvents.
func (s *GameState) Log(category, trainerID, format string, args ...any) Event {
	s.NextEventSeq++
	now := time.Now().UTC()
	e := Event{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Seq:       s.NextEventSeq,
		Tick:      s.Tick,
		Day:       s.Day,
		Category:  category,
		TrainerID: trainerID,
		Message:   fmt.Sprintf(format, args...),
		At:        now,
	}
	s.Events = append(s.Events, e)

	limit := s.MaxEvents
	if limit <= 0 {
		limit = DefaultMaxEvents
	}
	if over := len(s.Events) - limit; over > 0 {
		s.Events = append(s.Events[:0], s.Events[over:]...)
	}
	return e
}

// RecentEvents returns up to n of the newest messages that are either global
// or about the given trainer, oldest first.
func (s *GameState) RecentEvents(trainerID string, n int) []string {
	var out []string
	for i := len(s.Events) - 1; i >= 0 && len(out) < n; i-- {
		e := s.Events[i]
		if e.TrainerID != "" && e.TrainerID != trainerID {
			continue
		}
		out = append(out, e.Message)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// EventsSince returns events with Seq greater than seq.
func (s *GameState) EventsSince(seq uint64) []Event {
	for i, e := range s.Events {
		if e.Seq > seq {
			return append([]Event(nil), s.Events[i:]...)
		}
	}
	return nil
}
