package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config controls the backend endpoint used to request feedback generation.
type Config struct {
	APIBaseURL string
	AuthToken  string
	HTTPClient *http.Client
}

// Dispatcher asks the interview backend to fetch the call transcript and
// produce a scored review for a finished session. The backend works
// asynchronously; a successful dispatch only means the request was accepted.
type Dispatcher struct {
	cfg  Config
	http *http.Client
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:5000"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Dispatcher{cfg: cfg, http: httpClient}
}

type processRequest struct {
	CallID  string `json:"callId"`
	UserID  string `json:"userId"`
	JobRole string `json:"jobRole"`
}

func (d *Dispatcher) RequestFeedback(ctx context.Context, callID string, userID string, jobRole string) error {
	payload, err := json.Marshal(processRequest{CallID: callID, UserID: userID, JobRole: jobRole})
	if err != nil {
		return fmt.Errorf("encode process-interview request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(d.cfg.APIBaseURL, "/")+"/process-interview", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.AuthToken)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("process-interview request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("process-interview returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
