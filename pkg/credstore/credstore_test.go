package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hiddensweep/hiddensweep/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveToken("tok-1"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	got, err := s.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("LoadToken = %q, want tok-1", got)
	}
}

func TestLoadToken_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)

	u := &models.User{ID: 7, Name: "Ada", Email: "ada@example.com"}
	if err := s.SaveUser(u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	got, err := s.LoadUser()
	if err != nil {
		t.Fatalf("LoadUser: %v", err)
	}
	if got == nil || got.ID != 7 || got.Email != "ada@example.com" {
		t.Errorf("LoadUser = %+v, want %+v", got, u)
	}
}

func TestLoadUser_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LoadUser()
	if err != nil {
		t.Fatalf("LoadUser: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil user, got %+v", got)
	}
}

func TestSaveAndClear(t *testing.T) {
	s := newTestStore(t)

	u := &models.User{ID: 1, Email: "a@b.c"}
	if err := s.Save("tok-1", u); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	tok, err := s.LoadToken()
	if err != nil || tok != "" {
		t.Errorf("LoadToken after Clear = %q, %v", tok, err)
	}
	user, err := s.LoadUser()
	if err != nil || user != nil {
		t.Errorf("LoadUser after Clear = %+v, %v", user, err)
	}

	// Clearing an already-empty store is not an error.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestFilePermissions(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveToken("secret"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	info, err := os.Stat(filepath.Join(s.Dir(), "token.json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file perms = %o, want 0600", perm)
	}
}

func TestNoLeftoverTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save("tok", &models.User{ID: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
