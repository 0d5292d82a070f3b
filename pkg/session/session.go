// Package session holds per-user conversation state for the composer and
// the TTL discipline that reclaims it.
package session

import (
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/grid"
)

type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingMainText     State = "awaiting_main_text"
	StateBuildingGrid         State = "building_grid"
	StateAwaitingButtonLabel  State = "awaiting_button_label"
	StateAwaitingButtonTarget State = "awaiting_button_target"
)

// awaiting reports whether the state is one of the sub-states allowed to
// carry scratch data.
func (s State) awaiting() bool {
	return s == StateAwaitingButtonLabel || s == StateAwaitingButtonTarget
}

// MessageData is the message under construction.
type MessageData struct {
	Text      string
	Grid      *grid.Grid
	Entities  []telego.MessageEntity
	CreatedAt time.Time
}

// TempData is transient scratch for the add-button sub-flow. It exists only
// while the session sits in an awaiting-* state.
type TempData struct {
	Row   int
	Label string
	Kind  grid.Kind
}

type Session struct {
	Key          string
	ChatID       int64
	State        State
	Message      *MessageData
	Temp         *TempData
	RenderedID   int // editor message currently being edited, 0 if none
	LastActivity time.Time

	mu sync.Mutex
}

// Lock serializes all handling for this session; updates for different keys
// never contend on it.
func (s *Session) Lock() {
	s.mu.Lock()
}

func (s *Session) Unlock() {
	s.mu.Unlock()
}

// SetState transitions the session and clears scratch data whenever the
// awaiting sub-flow is left.
func (s *Session) SetState(next State) {
	if !next.awaiting() {
		s.Temp = nil
	}
	s.State = next
}

// Reset drops the message under construction and returns to Idle.
func (s *Session) Reset() {
	s.Message = nil
	s.Temp = nil
	s.RenderedID = 0
	s.State = StateIdle
}

// Snapshot captures the mutable fields so a failed render can roll the
// session back to the state its user last observed. Caller holds the lock.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:        s.State,
		RenderedID:   s.RenderedID,
		LastActivity: s.LastActivity,
	}
	if s.Message != nil {
		m := *s.Message
		m.Grid = s.Message.Grid.Clone()
		m.Entities = append([]telego.MessageEntity(nil), s.Message.Entities...)
		snap.Message = &m
	}
	if s.Temp != nil {
		t := *s.Temp
		snap.Temp = &t
	}
	return snap
}

// Restore rewinds the session to a previously captured snapshot. Caller
// holds the lock.
func (s *Session) Restore(snap Snapshot) {
	s.State = snap.State
	s.Message = snap.Message
	s.Temp = snap.Temp
	s.RenderedID = snap.RenderedID
	s.LastActivity = snap.LastActivity
}

type Snapshot struct {
	State        State
	Message      *MessageData
	Temp         *TempData
	RenderedID   int
	LastActivity time.Time
}

// Store is the injected session-table abstraction; the in-memory Manager is
// the only production implementation, tests may substitute their own.
type Store interface {
	GetOrCreate(key string) *Session
	Get(key string) (*Session, bool)
	Delete(key string)
	Touch(key string)
	Sweep(now time.Time) int
}
