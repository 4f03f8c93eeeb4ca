package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const (
	ReasonOnDemand = "on_demand"
	ReasonDigest   = "digest"
)

// ErrMalformed marks a delivery that can never be processed; it is dropped
// instead of requeued.
var ErrMalformed = errors.New("malformed message")

// RecommendationRequest asks the worker to compute recommendations for one user.
type RecommendationRequest struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Limit       int       `json:"limit,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// RecommendationResult carries the engine output back to whoever asked.
type RecommendationResult struct {
	RequestID       string                `json:"request_id"`
	UserID          string                `json:"user_id"`
	Reason          string                `json:"reason,omitempty"`
	Recommendations []core.Recommendation `json:"recommendations"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// NewRecommendationRequest creates an on-demand request with a fresh id.
func NewRecommendationRequest(userID string, limit int) *RecommendationRequest {
	return &RecommendationRequest{
		RequestID:   uuid.NewString(),
		UserID:      userID,
		Limit:       limit,
		Reason:      ReasonOnDemand,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *RecommendationRequest) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *RecommendationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecommendationRequestFromJSON decodes and validates a request. Every failure
// wraps ErrMalformed.
func RecommendationRequestFromJSON(data []byte) (*RecommendationRequest, error) {
	var msg RecommendationRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &msg, nil
}

// NewRecommendationResult answers req with recs.
func NewRecommendationResult(req *RecommendationRequest, recs []core.Recommendation, generatedAt time.Time) *RecommendationResult {
	return &RecommendationResult{
		RequestID:       req.RequestID,
		UserID:          req.UserID,
		Reason:          req.Reason,
		Recommendations: recs,
		GeneratedAt:     generatedAt.UTC(),
	}
}

func (m *RecommendationResult) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecommendationResultFromJSON(data []byte) (*RecommendationResult, error) {
	var msg RecommendationResult
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &msg, nil
}
