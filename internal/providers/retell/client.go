package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"intervox/internal/domain"
	"intervox/internal/ports"
)

// Config controls the interview backend and call signaling settings.
type Config struct {
	APIBaseURL string
	AuthToken  string
	HTTPClient *http.Client
}

// Client implements ports.CallService against the interview backend, which
// brokers call sessions with the voice transport and exposes a signaling
// websocket for call lifecycle events.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:5000"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type createSessionRequest struct {
	JobRole string `json:"jobRole"`
	UserID  string `json:"userId"`
}

type createSessionResponse struct {
	Success     bool   `json:"success"`
	CallID      string `json:"callId"`
	AccessToken string `json:"accessToken"`
	Error       string `json:"error"`
}

func (c *Client) CreateSession(ctx context.Context, jobRole string, userID string) (domain.CallCredentials, error) {
	payload, err := json.Marshal(createSessionRequest{JobRole: jobRole, UserID: userID})
	if err != nil {
		return domain.CallCredentials{}, fmt.Errorf("encode create-interview request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.APIBaseURL, "/")+"/create-interview", bytes.NewReader(payload))
	if err != nil {
		return domain.CallCredentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CallCredentials{}, fmt.Errorf("create-interview request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.CallCredentials{}, fmt.Errorf("read create-interview response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.CallCredentials{}, fmt.Errorf("create-interview returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded createSessionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.CallCredentials{}, fmt.Errorf("decode create-interview response: %w", err)
	}
	if !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = "backend rejected the interview session"
		}
		return domain.CallCredentials{}, errors.New(msg)
	}
	if decoded.CallID == "" || decoded.AccessToken == "" {
		return domain.CallCredentials{}, errors.New("backend returned incomplete call credentials")
	}

	return domain.CallCredentials{CallID: decoded.CallID, AccessToken: decoded.AccessToken}, nil
}

func (c *Client) Start(ctx context.Context, creds domain.CallCredentials) (ports.CallSession, error) {
	if creds.CallID == "" || creds.AccessToken == "" {
		return nil, errors.New("call credentials are not set")
	}

	wsURL, err := buildCallURL(c.cfg.APIBaseURL, creds.CallID)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+creds.AccessToken)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to call signaling: %w", err)
	}

	session := &callSession{
		conn:   conn,
		events: make(chan domain.CallEvent, 32),
		done:   make(chan struct{}),
	}
	go session.readLoop()
	go func() {
		<-ctx.Done()
		_ = session.Stop()
	}()

	return session, nil
}

type callSession struct {
	conn *websocket.Conn

	events chan domain.CallEvent
	done   chan struct{}

	writeMu sync.Mutex

	stateMu sync.Mutex
	ended   bool

	stopOnce sync.Once
}

func (s *callSession) Events() <-chan domain.CallEvent {
	return s.events
}

// Stop asks the transport to hang up and closes the connection. Tolerant of
// a call that already ended.
func (s *callSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.writeControl("stop")
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Mute silences the local microphone. Requests after the call ended are
// silently ignored.
func (s *callSession) Mute() error {
	if s.isEnded() {
		return nil
	}
	return s.writeControl("mute")
}

// Unmute reopens the local microphone, ignored after the call ended.
func (s *callSession) Unmute() error {
	if s.isEnded() {
		return nil
	}
	return s.writeControl("unmute")
}

func (s *callSession) writeControl(event string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err := s.conn.WriteJSON(map[string]string{"event": event})
	if err != nil && s.isEnded() {
		// the remote side already hung up; there is nothing to control
		return nil
	}
	return err
}

func (s *callSession) isEnded() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.ended
}

func (s *callSession) markEnded() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	return true
}

type signalingMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// readLoop translates the signaling stream into the normalized, ordered
// call-event vocabulary. The events channel closes when the call is over.
func (s *callSession) readLoop() {
	defer func() {
		close(s.events)
		close(s.done)
		_ = s.conn.Close()
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.markEnded() {
				if isExpectedClose(err) {
					s.emit(domain.CallEvent{Kind: domain.CallEventEnded})
				} else {
					s.emit(domain.CallEvent{Kind: domain.CallEventError, Reason: err.Error()})
				}
			}
			return
		}

		var msg signalingMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "call_started":
			s.emit(domain.CallEvent{Kind: domain.CallEventStarted})
		case "call_ended":
			if s.markEnded() {
				s.emit(domain.CallEvent{Kind: domain.CallEventEnded})
			}
			return
		case "agent_start_talking":
			s.emit(domain.CallEvent{Kind: domain.CallEventAgentSpeaking, AgentSpeaking: true})
		case "agent_stop_talking":
			s.emit(domain.CallEvent{Kind: domain.CallEventAgentSpeaking, AgentSpeaking: false})
		case "error":
			if s.markEnded() {
				reason := strings.TrimSpace(msg.Message)
				if reason == "" {
					reason = "the call service reported an unknown error"
				}
				s.emit(domain.CallEvent{Kind: domain.CallEventError, Reason: reason})
			}
			return
		}
	}
}

func (s *callSession) emit(event domain.CallEvent) {
	select {
	case s.events <- event:
	default:
	}
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed)
}

func buildCallURL(apiBase string, callID string) (string, error) {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = "http://localhost:5000"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	callURL, err := url.Parse(base + "/call/" + url.PathEscape(callID))
	if err != nil {
		return "", fmt.Errorf("invalid backend base URL: %w", err)
	}
	return callURL.String(), nil
}
