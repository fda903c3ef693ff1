package tier

import (
	"fmt"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
)

// Metric is a capped resource of a tier
type Metric string

const (
	MetricVideoStorageSeconds Metric = "video_storage_seconds"
	MetricStudents            Metric = "students"
	MetricEmailsPerMonth      Metric = "emails_per_month"
	MetricAICourse            Metric = "ai_course"
	MetricAIRewrite           Metric = "ai_rewrite"
	MetricAIImage             Metric = "ai_image"
	MetricAIQuiz              Metric = "ai_quiz"
)

// ErrInvalidMetric is returned for an unknown metric
var ErrInvalidMetric = shared.NewDomainError("INVALID_METRIC", "Unknown metric")

// AllMetrics returns every metric in a stable order
func AllMetrics() []Metric {
	return []Metric{
		MetricVideoStorageSeconds,
		MetricStudents,
		MetricEmailsPerMonth,
		MetricAICourse,
		MetricAIRewrite,
		MetricAIImage,
		MetricAIQuiz,
	}
}

// BillableMetrics returns the metrics whose overage is billed through the
// payment processor, in reporting order
func BillableMetrics() []Metric {
	return []Metric{MetricVideoStorageSeconds, MetricStudents, MetricEmailsPerMonth}
}

// String returns the string representation of Metric
func (m Metric) String() string {
	return string(m)
}

// IsValid returns true if the metric is known
func (m Metric) IsValid() bool {
	switch m {
	case MetricVideoStorageSeconds, MetricStudents, MetricEmailsPerMonth,
		MetricAICourse, MetricAIRewrite, MetricAIImage, MetricAIQuiz:
		return true
	}
	return false
}

// CreditType maps an AI metric to its credit ledger. ok is false for the
// metrics that are not backed by credits.
func (m Metric) CreditType() (credit.Type, bool) {
	switch m {
	case MetricAICourse:
		return credit.TypeAICourse, true
	case MetricAIRewrite:
		return credit.TypeAIRewrite, true
	case MetricAIImage:
		return credit.TypeAIImage, true
	case MetricAIQuiz:
		return credit.TypeAIQuiz, true
	default:
		return "", false
	}
}

// MetricForCredit maps a credit type to its metric
func MetricForCredit(ct credit.Type) (Metric, bool) {
	switch ct {
	case credit.TypeAICourse:
		return MetricAICourse, true
	case credit.TypeAIRewrite:
		return MetricAIRewrite, true
	case credit.TypeAIImage:
		return MetricAIImage, true
	case credit.TypeAIQuiz:
		return MetricAIQuiz, true
	default:
		return "", false
	}
}

// ParseMetric parses a string into a Metric
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.IsValid() {
		return "", ErrInvalidMetric.WithMessage(fmt.Sprintf("unknown metric: %q", s))
	}
	return m, nil
}
