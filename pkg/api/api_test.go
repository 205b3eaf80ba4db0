package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hiddensweep/hiddensweep/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		Timeout: 2 * time.Second,
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
			Multiplier:  1.0,
		},
	})
	return c, ts
}

type recordingNotifier struct {
	errors   []string
	warnings []string
}

func (n *recordingNotifier) Error(msg string) string {
	n.errors = append(n.errors, msg)
	return ""
}

func (n *recordingNotifier) Warning(msg string) string {
	n.warnings = append(n.warnings, msg)
	return ""
}

func TestCall_Success(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer ts.Close()

	var out struct {
		Message string `json:"message"`
	}
	if err := c.Call(context.Background(), "GET", "/api/files/stats", nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Message != "ok" {
		t.Errorf("expected message ok, got %q", out.Message)
	}
}

func TestCall_BearerHeader(t *testing.T) {
	var gotAuth string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c.SetTokenSource(func() string { return "tok-123" })
	if err := c.Call(context.Background(), "GET", "/x", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected Bearer tok-123, got %q", gotAuth)
	}
}

func TestCall_Timeout(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer ts.Close()

	err := c.Call(context.Background(), "GET", "/slow", nil, nil, WithTimeout(20*time.Millisecond))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
	if err.Error() != "request took too long" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCall_Unauthorized_FiresHook(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	var hookCalls atomic.Int32
	c.OnUnauthorized(func() { hookCalls.Add(1) })

	err := c.Call(context.Background(), "GET", "/private", nil, nil)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if hookCalls.Load() != 1 {
		t.Errorf("expected hook to fire once, got %d", hookCalls.Load())
	}
}

func TestCall_WithoutAuth_SkipsHookOn401(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("expected no Authorization header")
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer ts.Close()

	c.SetTokenSource(func() string { return "tok" })
	var hookCalls atomic.Int32
	c.OnUnauthorized(func() { hookCalls.Add(1) })

	err := c.Call(context.Background(), "POST", "/api/auth/login", map[string]string{"email": "a"}, nil, WithoutAuth())
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if se.Message != "invalid credentials" {
		t.Errorf("expected parsed body message, got %q", se.Message)
	}
	if hookCalls.Load() != 0 {
		t.Errorf("hook must not fire for unauthenticated calls, fired %d times", hookCalls.Load())
	}
}

func TestCall_ErrorBodyFallsBackToStatus(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("not json at all"))
	}))
	defer ts.Close()

	err := c.Call(context.Background(), "GET", "/x", nil, nil)
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if se.Error() != "server returned 400" {
		t.Errorf("unexpected message: %q", se.Error())
	}
}

func TestCall_ServerError_Retried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	if err := c.Call(context.Background(), "GET", "/flaky", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestCall_ClientError_NotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"bad request"}`))
	}))
	defer ts.Close()

	err := c.Call(context.Background(), "GET", "/x", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", attempts.Load())
	}
}

func TestCall_ConnectionRefused(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listening anymore

	err := c.Call(context.Background(), "GET", "/x", nil, nil)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
	if err.Error() != "cannot reach server" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCall_NotifierSeesFailure(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"boom"}`))
	}))
	defer ts.Close()

	n := &recordingNotifier{}
	c.SetNotifier(n)

	c.Call(context.Background(), "GET", "/x", nil, nil)
	if len(n.errors) != 1 || n.errors[0] != "boom" {
		t.Errorf("expected one notification %q, got %v", "boom", n.errors)
	}

	c.Call(context.Background(), "GET", "/x", nil, nil, WithoutNotify())
	if len(n.errors) != 1 {
		t.Errorf("WithoutNotify must suppress the notification, got %v", n.errors)
	}
}

func TestStream_Success(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("line1\nline2\n"))
	}))
	defer ts.Close()

	c.SetTokenSource(func() string { return "tok" })
	body, err := c.Stream(context.Background(), "POST", "/api/files/scan", map[string]string{"folderPath": "/x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()
}

func TestStream_Unauthorized_FiresHook(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	var hookCalls atomic.Int32
	c.OnUnauthorized(func() { hookCalls.Add(1) })

	_, err := c.Stream(context.Background(), "POST", "/api/files/scan", nil)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if hookCalls.Load() != 1 {
		t.Errorf("expected hook to fire once, got %d", hookCalls.Load())
	}
}

func TestStream_ErrorBeforeStreaming(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"folder not found"}`))
	}))
	defer ts.Close()

	_, err := c.Stream(context.Background(), "POST", "/api/files/scan", nil)
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if se.Message != "folder not found" {
		t.Errorf("expected server message, got %q", se.Message)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ValidationError{Reason: "x"}, "validation"},
		{&AuthError{}, "auth"},
		{&TimeoutError{}, "timeout"},
		{&NetworkError{}, "network"},
		{&ServerError{Status: 500}, "server"},
		{errors.New("misc"), "other"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
