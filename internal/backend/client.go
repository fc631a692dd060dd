// Package backend implements the REST client for the examination API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/examkit/session-runtime/internal/examination"
)

// Client talks to the examination backend. Once UseExternalPaths is
// called (collaborative or external session), every route is rewritten
// onto the interoperability prefix for the rest of the session.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeRetries uint64
	logger      zerolog.Logger
	external    atomic.Bool
}

// NewClient builds a client against baseURL.
func NewClient(baseURL string, timeout time.Duration, timeRetries uint64, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		timeRetries: timeRetries,
		logger:      logger.With().Str("component", "backend_client").Logger(),
	}
}

// UseExternalPaths switches onto the interoperability route prefix.
func (c *Client) UseExternalPaths() {
	c.external.Store(true)
}

// resource applies the interoperability rewrite to a route.
func (c *Client) resource(path string) string {
	if c.external.Load() {
		path = strings.Replace(path, "/app/", "/app/iop/", 1)
	}
	return c.baseURL + path
}

// FetchSession loads the full session payload for a hash.
func (c *Client) FetchSession(ctx context.Context, hash string) (*examination.Session, error) {
	var session examination.Session
	if err := c.do(ctx, http.MethodGet, c.resource("/app/student/exam/"+hash), nil, &session); err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	return &session, nil
}

// FetchPreview loads an exam preview by id.
func (c *Client) FetchPreview(ctx context.Context, examID int64) (*examination.Session, error) {
	var session examination.Session
	url := c.resource(fmt.Sprintf("/app/exams/%d/preview", examID))
	if err := c.do(ctx, http.MethodGet, url, nil, &session); err != nil {
		return nil, fmt.Errorf("fetch preview: %w", err)
	}
	return &session, nil
}

// RemainingTime fetches the authoritative seconds left. The call is
// idempotent, so it retries with backoff before giving up; the clock
// treats a final error as fail-soft anyway.
func (c *Client) RemainingTime(ctx context.Context, hash string) (int, error) {
	var seconds int
	backoff := retry.WithMaxRetries(c.timeRetries, retry.NewExponential(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		seconds = 0
		if err := c.do(ctx, http.MethodGet, c.resource("/app/exam/time/"+hash), nil, &seconds); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("fetch remaining time: %w", err)
	}
	return seconds, nil
}

type essayPayload struct {
	Answer        string `json:"answer"`
	ObjectVersion int64  `json:"objectVersion"`
}

type clozePayload struct {
	Answer        map[string]string `json:"answer"`
	ObjectVersion int64             `json:"objectVersion"`
}

type versionResponse struct {
	ObjectVersion int64 `json:"objectVersion"`
}

// SaveEssay persists an essay answer and returns the new version token.
func (c *Client) SaveEssay(ctx context.Context, hash string, questionID int64, answer string, version int64) (int64, error) {
	url := c.resource(fmt.Sprintf("/app/student/exam/%s/question/%d", hash, questionID))
	var resp versionResponse
	if err := c.do(ctx, http.MethodPost, url, essayPayload{Answer: answer, ObjectVersion: version}, &resp); err != nil {
		return 0, fmt.Errorf("save essay answer: %w", err)
	}
	return resp.ObjectVersion, nil
}

// SaveCloze persists a cloze answer and returns the new version token.
func (c *Client) SaveCloze(ctx context.Context, hash string, questionID int64, blanks map[string]string, version int64) (int64, error) {
	url := c.resource(fmt.Sprintf("/app/student/exam/%s/clozetest/%d", hash, questionID))
	var resp versionResponse
	if err := c.do(ctx, http.MethodPost, url, clozePayload{Answer: blanks, ObjectVersion: version}, &resp); err != nil {
		return 0, fmt.Errorf("save cloze answer: %w", err)
	}
	return resp.ObjectVersion, nil
}

// SaveOptions persists the selected option ids of a choice question.
func (c *Client) SaveOptions(ctx context.Context, hash string, questionID int64, optionIDs []int64) error {
	url := c.resource(fmt.Sprintf("/app/student/exam/%s/question/%d/option", hash, questionID))
	body := map[string][]int64{"oids": optionIDs}
	if err := c.do(ctx, http.MethodPost, url, body, nil); err != nil {
		return fmt.Errorf("save options: %w", err)
	}
	return nil
}

// Abort discards the attempt server-side.
func (c *Client) Abort(ctx context.Context, hash string) error {
	if err := c.do(ctx, http.MethodPut, c.resource("/app/student/exam/abort/"+hash), struct{}{}, nil); err != nil {
		return fmt.Errorf("abort exam: %w", err)
	}
	return nil
}

// Finish signals end-of-session.
func (c *Client) Finish(ctx context.Context, hash string) error {
	if err := c.do(ctx, http.MethodPut, c.resource("/app/student/exam/"+hash), struct{}{}, nil); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, req.URL.Path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
