package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examkit/session-runtime/internal/examination"
)

// stubBackend serves a canned session and swallows writes.
type stubBackend struct {
	session *examination.Session
}

func (b *stubBackend) FetchSession(ctx context.Context, hash string) (*examination.Session, error) {
	return b.session, nil
}

func (b *stubBackend) FetchPreview(ctx context.Context, examID int64) (*examination.Session, error) {
	return b.session, nil
}

func (b *stubBackend) RemainingTime(ctx context.Context, hash string) (int, error) {
	return 3600, nil
}

func (b *stubBackend) SaveEssay(ctx context.Context, hash string, questionID int64, answer string, version int64) (int64, error) {
	return version + 1, nil
}

func (b *stubBackend) SaveCloze(ctx context.Context, hash string, questionID int64, blanks map[string]string, version int64) (int64, error) {
	return version + 1, nil
}

func (b *stubBackend) SaveOptions(ctx context.Context, hash string, questionID int64, optionIDs []int64) error {
	return nil
}

func (b *stubBackend) Abort(ctx context.Context, hash string) error  { return nil }
func (b *stubBackend) Finish(ctx context.Context, hash string) error { return nil }
func (b *stubBackend) UseExternalPaths()                             {}

type noopRouter struct{}

func (noopRouter) Navigate(reason string, quitLinkEnabled bool) {}

func statusFrom(t *testing.T, srv *http.Server) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/session/status", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	ctrl := examination.NewController(&stubBackend{}, noopRouter{}, examination.LogNotifier{Logger: zerolog.Nop()}, examination.ControllerConfig{}, zerolog.Nop())
	srv := NewHTTPServer(":0", ctrl, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatusBeforeStart(t *testing.T) {
	ctrl := examination.NewController(&stubBackend{}, noopRouter{}, examination.LogNotifier{Logger: zerolog.Nop()}, examination.ControllerConfig{}, zerolog.Nop())
	srv := NewHTTPServer(":0", ctrl, zerolog.Nop())

	body := statusFrom(t, srv)
	assert.Equal(t, "", body["state"])
	assert.Nil(t, body["sections"])
}

func TestStatusReflectsRunningSession(t *testing.T) {
	session := &examination.Session{
		Hash: "abc123",
		Sections: []*examination.Section{
			{ID: 10, Name: "Section A"},
			{ID: 20, Name: "Section B"},
		},
	}
	ctrl := examination.NewController(&stubBackend{session: session}, noopRouter{}, examination.LogNotifier{Logger: zerolog.Nop()}, examination.ControllerConfig{}, zerolog.Nop())
	require.NoError(t, ctrl.Start(context.Background(), examination.StartRequest{Hash: "abc123", Preview: true}))
	defer ctrl.Close()

	srv := NewHTTPServer(":0", ctrl, zerolog.Nop())
	body := statusFrom(t, srv)

	assert.Equal(t, "active", body["state"])
	assert.Equal(t, "abc123", body["hash"])
	assert.Len(t, body["sections"], 2)
	assert.Equal(t, float64(0), body["page"])
}
