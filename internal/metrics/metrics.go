// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Handler serves every registered metric in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}

// VictoriaMetrics/metrics API: labels are part of the metric name.
func counter(name string, labels ...string) *metrics.Counter {
	return metrics.GetOrCreateCounter(withLabels(name, labels...))
}

func withLabels(name string, labels ...string) string {
	if len(labels) == 0 {
		return name
	}
	out := name + "{"
	for i := 0; i+1 < len(labels); i += 2 {
		if i > 0 {
			out += ","
		}
		out += labels[i] + `="` + labels[i+1] + `"`
	}
	return out + "}"
}

// RecordScheduleBuilt counts entries written by a launch.
func RecordScheduleBuilt(entries int) {
	counter("mica_schedule_entries_created_total").Add(entries)
}

// RecordEntryFinished counts an entry reaching a terminal status.
func RecordEntryFinished(channel, status string, took time.Duration) {
	counter("mica_schedule_entries_finished_total", "channel", channel, "status", status).Inc()
	metrics.GetOrCreateHistogram(withLabels("mica_progression_duration_seconds", "channel", channel)).Update(took.Seconds())
}

func RecordGenerationStep(step string, success bool) {
	counter("mica_generation_steps_total", "step", step, "success", strconv.FormatBool(success)).Inc()
}

func RecordImageFailure() {
	counter("mica_image_failures_total").Inc()
}

func RecordVideoFallback(reason string) {
	counter("mica_video_fallbacks_total", "reason", reason).Inc()
}

func RecordWebhook(action string, simulated, success bool) {
	counter("mica_webhook_calls_total", "action", action,
		"simulated", strconv.FormatBool(simulated), "success", strconv.FormatBool(success)).Inc()
}

// RecordQueueMessage tracks day-job traffic through RabbitMQ or the in-memory queue.
func RecordQueueMessage(operation, queue string, success bool) {
	counter("mica_queue_messages_total", "operation", operation, "queue", queue, "success", strconv.FormatBool(success)).Inc()
}

func RecordDemoSession(event string) {
	counter("mica_demo_sessions_total", "event", event).Inc()
}
