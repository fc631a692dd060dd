// Package server exposes the runtime's observation surface: health,
// metrics, and read-only session status endpoints.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/examkit/session-runtime/internal/examination"
)

type statusResponse struct {
	State     string          `json:"state"`
	Hash      string          `json:"hash,omitempty"`
	Page      int             `json:"page"`
	Remaining string          `json:"remaining,omitempty"`
	Sections  []sectionStatus `json:"sections,omitempty"`
}

type sectionStatus struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Answered   int    `json:"answered"`
	Unanswered int    `json:"unanswered"`
}

// NewHTTPServer wires the base routes (health, metrics) and the session
// status endpoint for the runtime process.
func NewHTTPServer(addr string, controller *examination.Controller, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/session/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{State: string(controller.State())}
		if session := controller.Session(); session != nil {
			resp.Hash = session.Hash
		}
		// Answer progress comes from the store's locked snapshot; the raw
		// session must not be walked while saves mutate it.
		if store := controller.Store(); store != nil {
			for _, sec := range store.Status() {
				resp.Sections = append(resp.Sections, sectionStatus{
					ID:         sec.ID,
					Name:       sec.Name,
					Answered:   sec.Answered,
					Unanswered: sec.Unanswered,
				})
			}
		}
		if nav := controller.Navigator(); nav != nil {
			resp.Page = nav.Current().Index
		}
		if clock := controller.Clock(); clock != nil {
			if remaining, synced := clock.Remaining(); synced {
				resp.Remaining = examination.FormatRemaining(remaining)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error().Err(err).Msg("encoding status response failed")
		}
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
