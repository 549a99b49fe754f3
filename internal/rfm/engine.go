package rfm

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokolaris/backend/internal/cache"
	"tokolaris/backend/internal/domain"
)

// neverPurchasedDays stands in for "infinite staleness" when a customer has
// no purchase date, so they always land in the worst recency bucket.
const neverPurchasedDays = 36500

type Engine struct {
	cache    cache.AnalysisCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewEngine(cacheStore cache.AnalysisCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopAnalysisCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Analyze scores a whole customer population on recency, frequency and
// monetary value, assigns each customer a segment, and computes the
// population aggregates: active customers (recency score >= 3), VIP count
// (champions + loyal) and the mean total amount. An empty population
// yields an empty analysis.
func (e *Engine) Analyze(ctx context.Context, storeID string, facts []domain.CustomerFact) domain.RFMAnalysis {
	generatedAt := e.now().UTC()
	if len(facts) == 0 {
		return domain.RFMAnalysis{
			StoreID:            storeID,
			Scores:             []domain.RFMScore{},
			AverageTotalAmount: decimal.Zero,
			GeneratedAt:        generatedAt,
		}
	}

	cacheKey := buildCacheKey(storeID, facts)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return *cached
	}

	recencyDays := make([]float64, len(facts))
	frequencies := make([]float64, len(facts))
	amounts := make([]float64, len(facts))
	for i, fact := range facts {
		recencyDays[i] = daysSince(generatedAt, fact.LastPurchaseDate)
		frequencies[i] = float64(fact.PurchaseCount)
		amounts[i] = fact.TotalAmount.InexactFloat64()
	}

	scores := make([]domain.RFMScore, 0, len(facts))
	totalAmount := decimal.Zero
	activeCount := 0
	vipCount := 0

	for i, fact := range facts {
		recency := invertScore(Score(recencyDays, recencyDays[i]))
		frequency := Score(frequencies, frequencies[i])
		monetary := Score(amounts, amounts[i])
		segment := Classify(recency, frequency, monetary)

		if recency >= 3 {
			activeCount++
		}
		if segment == SegmentChampions || segment == SegmentLoyal {
			vipCount++
		}
		totalAmount = totalAmount.Add(fact.TotalAmount)

		scores = append(scores, domain.RFMScore{
			CustomerFact:   fact,
			RecencyScore:   recency,
			FrequencyScore: frequency,
			MonetaryScore:  monetary,
			Segment:        segment,
		})
	}

	analysis := domain.RFMAnalysis{
		StoreID:            storeID,
		Scores:             scores,
		ActiveCustomers:    activeCount,
		VIPCount:           vipCount,
		AverageTotalAmount: totalAmount.Div(decimal.NewFromInt(int64(len(facts)))).Round(2),
		GeneratedAt:        generatedAt,
	}

	_ = e.cache.Set(ctx, cacheKey, &analysis, e.cacheTTL)
	return analysis
}

func daysSince(now time.Time, lastPurchase *time.Time) float64 {
	if lastPurchase == nil {
		return neverPurchasedDays
	}
	days := now.Sub(lastPurchase.UTC()).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

func buildCacheKey(storeID string, facts []domain.CustomerFact) string {
	parts := make([]string, 0, len(facts)+1)
	parts = append(parts, storeID)
	for _, fact := range facts {
		last := int64(0)
		if fact.LastPurchaseDate != nil {
			last = fact.LastPurchaseDate.Unix()
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d:%s", fact.CustomerID, last, fact.PurchaseCount, fact.TotalAmount.String()))
	}

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "loyalty:rfm:" + hex.EncodeToString(hash[:])
}
