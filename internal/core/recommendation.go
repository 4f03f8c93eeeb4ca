package core

import "github.com/shopspring/decimal"

const (
	KindInfo     RecommendationKind = "info"
	KindSuccess  RecommendationKind = "success"
	KindWarning  RecommendationKind = "warning"
	KindAlert    RecommendationKind = "alert"
	KindDanger   RecommendationKind = "danger"
	KindError    RecommendationKind = "error"
	KindGoal     RecommendationKind = "goal"
	KindReminder RecommendationKind = "reminder"
)

type RecommendationKind string

// Recommendation is transient analysis output. It is built once per invocation and
// never mutated afterwards.
type Recommendation struct {
	Kind             RecommendationKind `json:"type"`
	Code             string             `json:"code"`
	Title            string             `json:"title"`
	Message          string             `json:"message"`
	Subject          string             `json:"subject,omitempty"`
	Priority         int                `json:"priority"`
	PotentialSavings decimal.Decimal    `json:"potential_savings"`
	AnomalyScore     *float64           `json:"anomaly_score,omitempty"`
	Details          map[string]float64 `json:"details,omitempty"`
}
