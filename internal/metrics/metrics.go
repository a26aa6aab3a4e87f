// Package metrics holds the Prometheus instruments of the session core.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go-academic-portal/internal/model"
)

const namespace = "portal"

// Expiration reasons.
const (
	ReasonTimeout        = "timeout"
	ReasonLogout         = "logout"
	ReasonRefreshFailed  = "refresh_failed"
	ReasonStartupFailure = "startup_failure"
)

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op.
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	RefreshesTotal     *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec
	WarningsTotal      prometheus.Counter
	ExpirationsTotal   *prometheus.CounterVec
	Authenticated      prometheus.Gauge
	GatewayDuration    *prometheus.HistogramVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"result"},
		),
		RefreshesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Token refresh attempts by outcome",
			},
			[]string{"result"},
		),
		VerificationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_verifications_total",
				Help:      "Startup token verifications by outcome",
			},
			[]string{"result"},
		),
		WarningsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_warnings_total",
				Help:      "Expiry warnings shown",
			},
		),
		ExpirationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_ends_total",
				Help:      "Sessions ended by reason",
			},
			[]string{"reason"}, // timeout/logout/refresh_failed/startup_failure
		),
		Authenticated: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_authenticated",
				Help:      "1 while a user is signed in",
			},
		),
		GatewayDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Auth backend call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Result maps a gateway error to a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, model.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, model.ErrRefreshInvalid):
		return "refresh_invalid"
	case errors.Is(err, model.ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveLogin(err error, started time.Time) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(Result(err)).Inc()
	m.GatewayDuration.WithLabelValues("login").Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveRefresh(err error, started time.Time) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(Result(err)).Inc()
	m.GatewayDuration.WithLabelValues("refresh").Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveVerify(err error, started time.Time) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(Result(err)).Inc()
	m.GatewayDuration.WithLabelValues("verify").Observe(time.Since(started).Seconds())
}

func (m *Metrics) Warning() {
	if m == nil {
		return
	}
	m.WarningsTotal.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.Authenticated.Set(1)
}

func (m *Metrics) SessionEnded(reason string) {
	if m == nil {
		return
	}
	m.Authenticated.Set(0)
	m.ExpirationsTotal.WithLabelValues(reason).Inc()
}
