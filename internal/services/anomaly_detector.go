package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"

	minFraudSamples   = 5
	minSpikeGroups    = 2
	highSeverityZ     = 3.5
	spikeMultiplier   = 2
	maxFraudFindings  = 3
	maxSpikeFindings  = 2
	spikeSavingsShare = 0.2
)

// FraudAnomaly is a transaction whose amount lies far from the user's mean.
type FraudAnomaly struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	ZScore        float64         `json:"z_score"`
	Date          core.Date       `json:"date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Severity      string          `json:"severity"`
	Reason        string          `json:"reason"`
}

// SpendingSpike is a category whose spend exceeds twice the per-category mean.
type SpendingSpike struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Average    decimal.Decimal `json:"average"`
	Multiplier float64         `json:"multiplier"`
	Message    string          `json:"message"`
}

// AnomalyDetector flags statistical outliers in a user's transactions.
type AnomalyDetector struct {
	provider DataProvider
	cfg      settings
	logger   *log.Logger
}

func NewAnomalyDetector(provider DataProvider, opts ...Option) *AnomalyDetector {
	cfg := newSettings(opts)
	return &AnomalyDetector{
		provider: provider,
		cfg:      cfg,
		logger:   cfg.logger.WithComponent(log.ComponentAnomaly),
	}
}

// DetectFraud scores every transaction by its distance from the mean amount.
//
// When txs is nil the last 90 days are fetched from the provider. A threshold
// <= 0 selects the configured default. Fewer than five samples or zero variance
// yield an empty result. Findings are ordered by z-score, highest first.
func (d *AnomalyDetector) DetectFraud(ctx context.Context, userID string, txs []core.TransactionSample, threshold float64) ([]FraudAnomaly, error) {
	if txs == nil {
		var err error
		txs, err = d.provider.GetRecentTransactions(ctx, userID, core.TransactionWindow{Days: fraudLookbackDays})
		if err != nil {
			return nil, fmt.Errorf("get recent transactions: %w", err)
		}
	}
	if threshold <= 0 {
		threshold = d.cfg.zScoreThreshold
	}

	anomalies := []FraudAnomaly{}
	if len(txs) < minFraudSamples {
		return anomalies, nil
	}

	amounts := make([]float64, len(txs))
	var sum float64
	for i, tx := range txs {
		amounts[i] = tx.Amount.InexactFloat64()
		sum += amounts[i]
	}
	mean := sum / float64(len(amounts))

	var sqDiff float64
	for _, a := range amounts {
		sqDiff += (a - mean) * (a - mean)
	}
	stddev := math.Sqrt(sqDiff / float64(len(amounts)))
	if stddev == 0 {
		return anomalies, nil
	}

	for i, tx := range txs {
		z := math.Abs(amounts[i]-mean) / stddev
		if z <= threshold {
			continue
		}
		severity := SeverityMedium
		if z > highSeverityZ {
			severity = SeverityHigh
		}
		anomalies = append(anomalies, FraudAnomaly{
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			ZScore:        z,
			Date:          tx.Date,
			Description:   tx.Description,
			Category:      tx.Category,
			Severity:      severity,
			Reason:        fmt.Sprintf("amount %s is %.1f standard deviations from your average of %.2f", tx.Amount.StringFixed(2), z, mean),
		})
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].ZScore > anomalies[j].ZScore
	})
	anomaliesDetected.WithLabelValues("fraud").Add(float64(len(anomalies)))
	return anomalies, nil
}

// DetectSpendingSpikes compares category totals over the last days against their
// mean. The mean includes the candidate category itself. Input order is kept.
func (d *AnomalyDetector) DetectSpendingSpikes(ctx context.Context, userID string, days int) ([]SpendingSpike, error) {
	if days <= 0 {
		return nil, ErrInvalidWindow
	}
	now := d.cfg.now()
	start, end := daysAgo(now, days), core.DateOf(now)

	totals, err := d.provider.GetCategoryTotals(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get category totals: %w", err)
	}

	spikes := []SpendingSpike{}
	if len(totals) < minSpikeGroups {
		return spikes, nil
	}

	total := decimal.Zero
	for _, t := range totals {
		total = total.Add(t.Total)
	}
	mean := total.Div(decimal.NewFromInt(int64(len(totals))))
	if !mean.IsPositive() {
		return spikes, nil
	}
	limit := mean.Mul(decimal.NewFromInt(spikeMultiplier))

	for _, t := range totals {
		if !t.Total.GreaterThan(limit) {
			continue
		}
		multiplier := t.Total.Div(mean).InexactFloat64()
		spikes = append(spikes, SpendingSpike{
			Category:   t.Category,
			Amount:     t.Total,
			Average:    mean.Round(2),
			Multiplier: multiplier,
			Message: fmt.Sprintf("spending on %s over the last %d days is %.1fx your category average",
				t.Category, days, multiplier),
		})
	}
	anomaliesDetected.WithLabelValues("spike").Add(float64(len(spikes)))
	return spikes, nil
}

// FlagAnomalies turns the strongest findings of both detectors into recommendations.
// Detector failures are logged and reported as no anomalies.
func (d *AnomalyDetector) FlagAnomalies(ctx context.Context, userID string) []core.Recommendation {
	recs, _ := d.flagAnomalies(ctx, userID)
	return recs
}

// flagAnomalies also returns an error when both detectors failed, so the engine
// can tell an unreachable provider from an empty result.
func (d *AnomalyDetector) flagAnomalies(ctx context.Context, userID string) ([]core.Recommendation, error) {
	var recs []core.Recommendation

	frauds, fraudErr := d.DetectFraud(ctx, userID, nil, 0)
	if fraudErr != nil {
		d.logger.WarnContext(ctx, "Fraud detection failed",
			log.NewFields().WithUser(userID).WithError(fraudErr).ToSlice()...)
	}
	for i, a := range frauds {
		if i == maxFraudFindings {
			break
		}
		recs = append(recs, fraudRecommendation(a))
	}

	spikes, spikeErr := d.DetectSpendingSpikes(ctx, userID, d.cfg.spikeWindowDays)
	if spikeErr != nil {
		d.logger.WarnContext(ctx, "Spike detection failed",
			log.NewFields().WithUser(userID).WithError(spikeErr).ToSlice()...)
	}
	for i, s := range spikes {
		if i == maxSpikeFindings {
			break
		}
		recs = append(recs, spikeRecommendation(s))
	}

	if fraudErr != nil && spikeErr != nil {
		return recs, errors.Join(fraudErr, spikeErr)
	}
	return recs, nil
}

func fraudRecommendation(a FraudAnomaly) core.Recommendation {
	kind, priority := core.KindWarning, 7
	if a.Severity == SeverityHigh {
		kind, priority = core.KindDanger, 9
	}
	z := a.ZScore
	return core.Recommendation{
		Kind:             kind,
		Code:             "unusual_transaction",
		Title:            "Unusual transaction",
		Message:          fmt.Sprintf("%s on %s: %s", describe(a.Description), a.Date, a.Reason),
		Subject:          a.TransactionID,
		Priority:         priority,
		PotentialSavings: decimal.Zero,
		AnomalyScore:     &z,
		Details: map[string]float64{
			"amount":  a.Amount.InexactFloat64(),
			"z_score": z,
		},
	}
}

func spikeRecommendation(s SpendingSpike) core.Recommendation {
	return core.Recommendation{
		Kind:             core.KindAlert,
		Code:             "spending_spike",
		Title:            "Spending spike in " + s.Category,
		Message:          s.Message,
		Subject:          s.Category,
		Priority:         6,
		PotentialSavings: s.Amount.Mul(decimal.NewFromFloat(spikeSavingsShare)).Round(2),
		Details: map[string]float64{
			"amount":     s.Amount.InexactFloat64(),
			"average":    s.Average.InexactFloat64(),
			"multiplier": s.Multiplier,
		},
	}
}

func describe(desc string) string {
	if desc == "" {
		return "Transaction"
	}
	return desc
}

// daysAgo returns the calendar day n days before now.
func daysAgo(now time.Time, n int) core.Date {
	return core.DateOf(now.AddDate(0, 0, -n))
}
