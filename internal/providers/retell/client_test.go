package retell

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"intervox/internal/domain"
)

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{})
	if c.cfg.APIBaseURL != "http://localhost:5000" {
		t.Fatalf("unexpected base url: %q", c.cfg.APIBaseURL)
	}
}

func TestBuildCallURL(t *testing.T) {
	t.Parallel()

	url, err := buildCallURL("https://api.example.com", "call-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "wss://api.example.com/call/call-1" {
		t.Fatalf("unexpected url: %s", url)
	}

	url, err = buildCallURL("http://localhost:5000/", "call-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "ws://localhost:5000/call/call-2" {
		t.Fatalf("unexpected url: %s", url)
	}
}

func TestCreateSessionSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/create-interview" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var body createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.JobRole != "Backend Engineer" || body.UserID != "user-1" {
			t.Errorf("unexpected body: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(createSessionResponse{
			Success:     true,
			CallID:      "call-1",
			AccessToken: "access-1",
		})
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL, AuthToken: "app-token"})
	creds, err := c.CreateSession(context.Background(), "Backend Engineer", "user-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if creds.CallID != "call-1" || creds.AccessToken != "access-1" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestCreateSessionBackendRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(createSessionResponse{Success: false, Error: "agent pool exhausted"})
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL})
	_, err := c.CreateSession(context.Background(), "Backend Engineer", "user-1")
	if err == nil || !strings.Contains(err.Error(), "agent pool exhausted") {
		t.Fatalf("expected backend rejection, got %v", err)
	}
}

func TestCreateSessionHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL})
	_, err := c.CreateSession(context.Background(), "Backend Engineer", "user-1")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestStartTranslatesSignalingEvents(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/call-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("unexpected auth header: %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for _, event := range []string{"call_started", "agent_start_talking", "agent_stop_talking", "call_ended"} {
			if err := conn.WriteJSON(map[string]string{"event": event}); err != nil {
				return
			}
		}
		// keep the connection open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL})
	session, err := c.Start(context.Background(), domain.CallCredentials{CallID: "call-1", AccessToken: "access-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var kinds []domain.CallEventKind
	var speaking []bool
	for event := range session.Events() {
		kinds = append(kinds, event.Kind)
		if event.Kind == domain.CallEventAgentSpeaking {
			speaking = append(speaking, event.AgentSpeaking)
		}
	}

	want := []domain.CallEventKind{
		domain.CallEventStarted,
		domain.CallEventAgentSpeaking,
		domain.CallEventAgentSpeaking,
		domain.CallEventEnded,
	}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected events: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected event %d: %v", i, kinds[i])
		}
	}
	if len(speaking) != 2 || !speaking[0] || speaking[1] {
		t.Fatalf("unexpected speaking values: %v", speaking)
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop after ended failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	if err := session.Mute(); err != nil {
		t.Fatalf("mute after ended should be silent, got %v", err)
	}
}

func TestStartErrorEventEndsStream(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]string{"event": "error", "message": "agent crashed"})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL})
	session, err := c.Start(context.Background(), domain.CallCredentials{CallID: "call-1", AccessToken: "access-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	event, ok := <-session.Events()
	if !ok {
		t.Fatalf("expected error event before close")
	}
	if event.Kind != domain.CallEventError || event.Reason != "agent crashed" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if _, ok := <-session.Events(); ok {
		t.Fatalf("expected stream to close after error")
	}
}

func TestStartAbnormalCloseEmitsError(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]string{"event": "call_started"})
		// drop the connection without a close handshake
		_ = conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL})
	session, err := c.Start(context.Background(), domain.CallCredentials{CallID: "call-1", AccessToken: "access-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var last domain.CallEvent
	for event := range session.Events() {
		last = event
	}
	if last.Kind != domain.CallEventError {
		t.Fatalf("expected trailing error event, got %+v", last)
	}
}

func TestMuteAfterEndedIsSilent(t *testing.T) {
	t.Parallel()

	s := &callSession{ended: true}
	if err := s.Mute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Unmute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartRequiresCredentials(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{})
	if _, err := c.Start(context.Background(), domain.CallCredentials{}); err == nil {
		t.Fatalf("expected missing credentials error")
	}
}
