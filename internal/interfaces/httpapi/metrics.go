package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's Prometheus collectors on a private registry. It
// observes the interpreter, the ledger and the notification broadcaster.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	commandsExecuted  *prometheus.CounterVec
	txCreated         *prometheus.CounterVec
	txTransitions     *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	notificationsSent *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devconsole_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devconsole_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		commandsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devconsole_commands_executed_total",
			Help: "Commands executed by class and exit code",
		}, []string{"class", "exit_code"}),
		txCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devconsole_transactions_created_total",
			Help: "Transaction requests created by network",
		}, []string{"network"}),
		txTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devconsole_transaction_status_changes_total",
			Help: "Transaction status changes by resulting status",
		}, []string{"status"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devconsole_notification_sessions_active",
			Help: "Open notification channel sessions",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devconsole_notifications_sent_total",
			Help: "Alerts delivered to notification sessions",
		}, []string{"type", "severity"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.commandsExecuted,
		m.txCreated,
		m.txTransitions,
		m.sessionsActive,
		m.notificationsSent,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) OnCommandExecuted(class application.CommandClass, exitCode int) {
	m.commandsExecuted.WithLabelValues(string(class), strconv.Itoa(exitCode)).Inc()
}

func (m *Metrics) OnTransactionCreated(tx domain.TransactionRequest) {
	m.txCreated.WithLabelValues(tx.Network).Inc()
}

func (m *Metrics) OnTransactionStatus(tx domain.TransactionRequest) {
	m.txTransitions.WithLabelValues(string(tx.Status)).Inc()
}

func (m *Metrics) OnSessionOpened() {
	m.sessionsActive.Inc()
}

func (m *Metrics) OnSessionClosed() {
	m.sessionsActive.Dec()
}

func (m *Metrics) OnNotificationSent(event domain.Notification) {
	m.notificationsSent.WithLabelValues(event.Type, string(event.Severity)).Inc()
}

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
