package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Answer save outcomes, labelled by answer kind (essay, cloze, option)
// and outcome (ok, error).
var SavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exam_answer_saves_total",
	Help: "Answer save attempts against the backend.",
}, []string{"kind", "outcome"})

// Remaining-time polls, labelled by outcome (ok, error).
var TimePollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exam_time_polls_total",
	Help: "Authoritative remaining-time fetches.",
}, []string{"outcome"})

// Session terminations, labelled by reason (timeout, finished, aborted).
var TerminationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exam_session_terminations_total",
	Help: "Sessions terminated, by trigger.",
}, []string{"reason"})

// Last observed remaining seconds of the active session.
var RemainingSeconds = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "exam_remaining_seconds",
	Help: "Seconds left on the active session countdown.",
})
