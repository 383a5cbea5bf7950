package observability

import (
	"io"
	"net/http"
	"time"
)

// Metrics is the process-wide metric set. A nil *Metrics records nothing.
type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	apiErrors     *CounterVec
	liveSessions  *Gauge
	connects      *CounterVec
	turns         *CounterVec
	firstAudio    *HistogramVec
	turnDuration  *HistogramVec
	finalizeTasks *CounterVec
	statusChanges *CounterVec
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
}

var turnBuckets = []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 30}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("talkco_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"talkco_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight:   NewGauge("talkco_api_inflight_requests", "In-flight API requests."),
		apiErrors:     NewCounterVec("talkco_api_server_errors_total", "5xx responses by route.", []string{"route"}),
		liveSessions:  NewGauge("talkco_live_sessions", "Sessions currently held in the registry."),
		connects:      NewCounterVec("talkco_session_connects_total", "Speech engine connection attempts by result.", []string{"result"}),
		turns:         NewCounterVec("talkco_turns_total", "Turns by input kind and result.", []string{"kind", "result"}),
		firstAudio:    NewHistogramVec("talkco_turn_first_audio_seconds", "Time from turn start to the first audio chunk.", []string{"kind"}, turnBuckets),
		turnDuration:  NewHistogramVec("talkco_turn_duration_seconds", "Total turn duration.", []string{"kind"}, turnBuckets),
		finalizeTasks: NewCounterVec("talkco_finalize_tasks_total", "Post-session tasks by name and status.", []string{"task", "status"}),
		statusChanges: NewCounterVec("talkco_session_status_changes_total", "Session status transitions by target status.", []string{"status"}),
		llmRequests:   NewCounterVec("talkco_llm_requests_total", "Text-completion calls by status.", []string{"status"}),
		llmLatency:    NewHistogramVec("talkco_llm_request_duration_seconds", "Text-completion latency.", []string{"status"}, []float64{0.5, 1, 2, 5, 10, 20, 40, 60}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, p := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiErrors,
		m.liveSessions, m.connects, m.turns, m.firstAudio, m.turnDuration,
		m.finalizeTasks, m.statusChanges, m.llmRequests, m.llmLatency,
	} {
		if err := p.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
	if isServerErrorStatus(status) {
		m.apiErrors.Inc(route)
	}
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) SetLiveSessions(n int) {
	if m == nil {
		return
	}
	m.liveSessions.Set(float64(n))
}

func (m *Metrics) ObserveConnect(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.connects.Inc(result)
}

// ObserveTurn records one finished turn. firstAudio is zero when no audio arrived.
func (m *Metrics) ObserveTurn(kind, result string, firstAudio, total time.Duration) {
	if m == nil {
		return
	}
	m.turns.Inc(kind, result)
	if firstAudio > 0 {
		m.firstAudio.Observe(firstAudio.Seconds(), kind)
	}
	if total > 0 {
		m.turnDuration.Observe(total.Seconds(), kind)
	}
}

func (m *Metrics) ObserveFinalizeTask(task string, err error) {
	if m == nil {
		return
	}
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	m.finalizeTasks.Inc(task, status)
}

func (m *Metrics) IncStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.Inc(status)
}

func (m *Metrics) ObserveLLMRequest(err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmRequests.Inc(status)
	m.llmLatency.Observe(dur.Seconds(), status)
}
