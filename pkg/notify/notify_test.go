package notify

import (
	"testing"
	"time"

	"github.com/hiddensweep/hiddensweep/pkg/models"
)

func TestAdd_OrderAndUniqueIDs(t *testing.T) {
	s := NewStore()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := s.Add("msg", models.SeverityInfo, 0)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}

	items := s.List()
	if len(items) != 50 {
		t.Fatalf("expected 50 notifications, got %d", len(items))
	}
}

func TestAdd_TTLExpires(t *testing.T) {
	s := NewStore()
	s.Add("short-lived", models.SeverityInfo, 20*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.List()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("notification did not expire")
}

func TestAdd_ZeroTTLPersists(t *testing.T) {
	s := NewStore()
	s.Add("sticky", models.SeverityError, 0)

	time.Sleep(30 * time.Millisecond)
	if len(s.List()) != 1 {
		t.Fatalf("expected notification to persist, got %d items", len(s.List()))
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	a := s.Add("a", models.SeverityInfo, 0)
	b := s.Add("b", models.SeverityInfo, 0)

	s.Remove(a)
	items := s.List()
	if len(items) != 1 || items[0].ID != b {
		t.Fatalf("expected only %q to remain, got %v", b, items)
	}

	// Unknown ids are a no-op.
	s.Remove("no-such-id")
	if len(s.List()) != 1 {
		t.Fatal("removing an unknown id must not change the list")
	}
}

func TestClearAll(t *testing.T) {
	s := NewStore()
	s.Add("a", models.SeverityInfo, time.Minute)
	s.Add("b", models.SeverityWarning, 0)

	s.ClearAll()
	if len(s.List()) != 0 {
		t.Fatal("expected empty list after ClearAll")
	}
}

func TestSeverityHelpers(t *testing.T) {
	s := NewStore()
	s.Success("s")
	s.Error("e")
	s.Warning("w")
	s.Info("i")

	items := s.List()
	if len(items) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(items))
	}
	want := []models.Severity{
		models.SeveritySuccess,
		models.SeverityError,
		models.SeverityWarning,
		models.SeverityInfo,
	}
	for i, sev := range want {
		if items[i].Severity != sev {
			t.Errorf("item %d: severity = %q, want %q", i, items[i].Severity, sev)
		}
		if items[i].TTL != DefaultTTL {
			t.Errorf("item %d: ttl = %s, want %s", i, items[i].TTL, DefaultTTL)
		}
	}
}
