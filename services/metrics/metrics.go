// Package metrics registers the Prometheus collectors of the API.
package metrics

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
)

var (
	AwardsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awards_issued_total",
			Help: "Total number of issued awards",
		},
		[]string{"outcome"}, // created | reissued
	)

	AwardsRedeemed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awards_redeemed_total",
			Help: "Total number of redeemed awards",
		},
		[]string{"category", "promoted"},
	)

	RedeemFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "award_redeem_failures_total",
			Help: "Total number of rejected redemptions",
		},
		[]string{"reason"},
	)

	PointsAwarded = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "award_points",
			Help:    "Distribution of redeemed award points",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

func ObserveIssued(created bool) {
	outcome := "reissued"
	if created {
		outcome = "created"
	}
	AwardsIssued.WithLabelValues(outcome).Inc()
}

func ObserveRedeemed(res award.Redemption) {
	AwardsRedeemed.WithLabelValues(string(res.Category), strconv.FormatBool(res.Promoted)).Inc()
	PointsAwarded.Observe(float64(res.PointsCredited))
}

func ObserveRedeemFailure(err error) {
	RedeemFailures.WithLabelValues(FailureReason(err)).Inc()
}

// FailureReason maps a redemption error to a low-cardinality label.
func FailureReason(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, award.ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, award.ErrNotFound):
		return "not_found"
	case errors.Is(err, award.ErrNotOwner):
		return "not_owner"
	case core.IsValidationError(err), errors.As(err, &verrs):
		return "invalid"
	default:
		return "internal"
	}
}
