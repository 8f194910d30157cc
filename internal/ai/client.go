package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/carelink/platform/internal/intake/domain"
	"github.com/carelink/platform/internal/shared/config"
	"github.com/carelink/platform/internal/triage"
)

// ErrUnavailable marks transport-level and server-side failures. Callers
// treat it as a soft failure: the turn still completes with a fallback
// reply and the failure streak is bumped.
var ErrUnavailable = errors.New("ai service unavailable")

// TurnRequest is what the extraction service sees for one conversation
// turn: the patient's message, the active persona, and the state the
// persona needs to avoid re-asking.
type TurnRequest struct {
	SessionID      string              `json:"session_id"`
	Role           domain.AgentRole    `json:"role"`
	Message        string              `json:"message"`
	Images         []string            `json:"images,omitempty"`
	MedicalData    domain.MedicalData  `json:"medical_data"`
	AnsweredTopics []string            `json:"answered_topics,omitempty"`
	History        []HistoryEntry      `json:"history,omitempty"`
	OfferConcluded bool                `json:"offer_conclusion,omitempty"`
}

// HistoryEntry is one prior turn passed for context.
type HistoryEntry struct {
	Role    domain.MessageRole `json:"role"`
	Content string             `json:"content"`
}

// TurnResult is the structured output of one extraction call.
type TurnResult struct {
	Reply         string                   `json:"reply"`
	Fields        domain.MedicalData       `json:"fields"`
	Vitals        *triage.VitalsInput      `json:"vitals,omitempty"`
	Topic         string                   `json:"topic,omitempty"`
	TopicAnswered bool                     `json:"topic_answered"`
	Handover      *domain.ClinicalHandover `json:"handover,omitempty"`
	DoctorThought *domain.DoctorThought    `json:"doctor_thought,omitempty"`
	Complete      bool                     `json:"complete"`
}

// Client calls the extraction service over HTTP. A client-side rate
// limiter smooths bursts so one chatty session cannot starve the rest.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	enabled    bool
}

// NewClient builds a client from config. When disabled, every call
// returns ErrUnavailable so the fallback path is exercised end to end.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether the extraction service is configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Turn runs one extraction call. Transport errors, non-2xx responses and
// timeouts all surface as ErrUnavailable; malformed JSON from the
// service does too, since a half-parsed extraction must never be merged.
func (c *Client) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if !c.enabled {
		return nil, ErrUnavailable
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn request: %w", err)
	}

	url := c.baseURL + "/v1/turn"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d after %s", ErrUnavailable, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	}

	var result TurnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if result.Reply == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrUnavailable)
	}

	return &result, nil
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ai service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ai service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
