// Package metrics exposes Prometheus counters for the verification and
// recovery flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	IDVerifications        *prometheus.CounterVec
	FaceVerifications      *prometheus.CounterVec
	RemoteFallbacks        prometheus.Counter
	RecoveryCodesIssued    *prometheus.CounterVec
	RecoveryVerifyAttempts *prometheus.CounterVec
	PasswordResets         *prometheus.CounterVec
}

// New registers every counter on the given registerer. Pass
// prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IDVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_id_verifications_total",
			Help: "Document verification verdicts by outcome and provenance.",
		}, []string{"outcome", "provenance"}),
		FaceVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_face_verifications_total",
			Help: "Face verification verdicts by outcome and provenance.",
		}, []string{"outcome", "provenance"}),
		RemoteFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "kyc_remote_fallbacks_total",
			Help: "Verifications decided locally because the remote authority was unavailable.",
		}),
		RecoveryCodesIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_codes_issued_total",
			Help: "Password recovery codes issued by delivery mode.",
		}, []string{"mode"}),
		RecoveryVerifyAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_verify_attempts_total",
			Help: "Recovery code verification attempts by result.",
		}, []string{"result"}),
		PasswordResets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "password_resets_total",
			Help: "Password reset completions by result.",
		}, []string{"result"}),
	}
}

// Outcome converts a verdict flag into a counter label.
func Outcome(verified bool) string {
	if verified {
		return "verified"
	}
	return "rejected"
}
