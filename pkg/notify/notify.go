// Package notify holds transient user-facing messages with auto-expiry.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hiddensweep/hiddensweep/pkg/models"
)

// DefaultTTL is the auto-removal delay used by the convenience helpers.
const DefaultTTL = 5 * time.Second

// Store is an in-memory notification list. Insertion order is preserved;
// there is no cap on concurrent notifications.
type Store struct {
	mu     sync.Mutex
	items  []models.Notification
	timers map[string]*time.Timer
}

// NewStore creates an empty notification store.
func NewStore() *Store {
	return &Store{
		timers: make(map[string]*time.Timer),
	}
}

// Add appends a notification and returns its id. A positive ttl schedules
// automatic removal; ttl=0 keeps the notification until removed explicitly.
func (s *Store) Add(message string, severity models.Severity, ttl time.Duration) string {
	// Millisecond timestamp plus a random tie-break so two notifications
	// in the same millisecond still get distinct ids.
	id := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])

	s.mu.Lock()
	s.items = append(s.items, models.Notification{
		ID:        id,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
		TTL:       ttl,
	})
	if ttl > 0 {
		s.timers[id] = time.AfterFunc(ttl, func() {
			s.Remove(id)
		})
	}
	s.mu.Unlock()

	return id
}

// Remove deletes a notification by id. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// ClearAll removes every notification and cancels pending expiries.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.items = nil
}

// List returns a copy of the current notifications in insertion order.
func (s *Store) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Success adds a success notification with the default TTL.
func (s *Store) Success(message string) string {
	return s.Add(message, models.SeveritySuccess, DefaultTTL)
}

// Error adds an error notification with the default TTL.
func (s *Store) Error(message string) string {
	return s.Add(message, models.SeverityError, DefaultTTL)
}

// Warning adds a warning notification with the default TTL.
func (s *Store) Warning(message string) string {
	return s.Add(message, models.SeverityWarning, DefaultTTL)
}

// Info adds an info notification with the default TTL.
func (s *Store) Info(message string) string {
	return s.Add(message, models.SeverityInfo, DefaultTTL)
}
