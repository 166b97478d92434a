// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvitesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideamarket_invites_created_total",
			Help: "Total number of invitations created, by initial status",
		},
		[]string{"status"},
	)

	InviteTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideamarket_invite_transitions_total",
			Help: "Total number of invitation state changes attempted",
		},
		[]string{"action", "result"},
	)

	MailSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideamarket_mail_sends_total",
			Help: "Total number of emails handed to the mail transport",
		},
		[]string{"kind", "result"},
	)

	MailDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ideamarket_mail_send_duration_seconds",
			Help:    "Duration of mail transport calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideamarket_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ideamarket_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ideamarket_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)
