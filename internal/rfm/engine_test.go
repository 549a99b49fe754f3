package rfm

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokolaris/backend/internal/domain"
)

func newTestEngine(now time.Time) *Engine {
	engine := NewEngine(nil, time.Minute)
	engine.now = func() time.Time { return now }
	return engine
}

func daysAgo(now time.Time, days int) *time.Time {
	at := now.AddDate(0, 0, -days)
	return &at
}

func TestAnalyzeEmptyPopulation(t *testing.T) {
	engine := newTestEngine(time.Now().UTC())

	analysis := engine.Analyze(context.Background(), "toko-utama", nil)
	if len(analysis.Scores) != 0 {
		t.Fatalf("expected no scores, got %d", len(analysis.Scores))
	}
	if analysis.ActiveCustomers != 0 || analysis.VIPCount != 0 {
		t.Fatalf("expected zero aggregates, got %+v", analysis)
	}
	if !analysis.AverageTotalAmount.Equal(decimal.Zero) {
		t.Fatalf("expected zero average, got %s", analysis.AverageTotalAmount)
	}
}

func TestAnalyzeScoresAndAggregates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(now)

	facts := []domain.CustomerFact{
		{CustomerID: "a", CustomerName: "A", LastPurchaseDate: daysAgo(now, 1), PurchaseCount: 10, TotalAmount: decimal.NewFromInt(500)},
		{CustomerID: "b", CustomerName: "B", LastPurchaseDate: daysAgo(now, 5), PurchaseCount: 8, TotalAmount: decimal.NewFromInt(400)},
		{CustomerID: "c", CustomerName: "C", LastPurchaseDate: daysAgo(now, 20), PurchaseCount: 6, TotalAmount: decimal.NewFromInt(300)},
		{CustomerID: "d", CustomerName: "D", LastPurchaseDate: daysAgo(now, 60), PurchaseCount: 4, TotalAmount: decimal.NewFromInt(200)},
		{CustomerID: "e", CustomerName: "E", LastPurchaseDate: nil, PurchaseCount: 1, TotalAmount: decimal.NewFromInt(50)},
	}

	analysis := engine.Analyze(context.Background(), "toko-utama", facts)
	if len(analysis.Scores) != len(facts) {
		t.Fatalf("expected %d scores, got %d", len(facts), len(analysis.Scores))
	}

	byID := make(map[string]domain.RFMScore, len(analysis.Scores))
	for _, score := range analysis.Scores {
		byID[score.CustomerID] = score
	}

	// Customer e never purchased: worst recency no matter the population.
	if byID["e"].RecencyScore != 1 {
		t.Fatalf("expected recency 1 for customer with no purchase date, got %d", byID["e"].RecencyScore)
	}

	if byID["a"].RecencyScore < byID["d"].RecencyScore {
		t.Fatalf("most recent buyer scored below a stale one: a=%d d=%d", byID["a"].RecencyScore, byID["d"].RecencyScore)
	}
	if byID["a"].FrequencyScore != 5 || byID["a"].MonetaryScore != 5 {
		t.Fatalf("expected top buyer to score 5/5 on frequency and monetary, got %d/%d", byID["a"].FrequencyScore, byID["a"].MonetaryScore)
	}

	for id, score := range byID {
		if _, ok := Descriptors()[score.Segment]; !ok {
			t.Fatalf("customer %s got unknown segment %q", id, score.Segment)
		}
	}

	wantAverage := decimal.NewFromInt(290)
	if !analysis.AverageTotalAmount.Equal(wantAverage) {
		t.Fatalf("expected average %s, got %s", wantAverage, analysis.AverageTotalAmount)
	}

	activeWant := 0
	vipWant := 0
	for _, score := range analysis.Scores {
		if score.RecencyScore >= 3 {
			activeWant++
		}
		if score.Segment == SegmentChampions || score.Segment == SegmentLoyal {
			vipWant++
		}
	}
	if analysis.ActiveCustomers != activeWant {
		t.Fatalf("active customers = %d, want %d", analysis.ActiveCustomers, activeWant)
	}
	if analysis.VIPCount != vipWant {
		t.Fatalf("vip count = %d, want %d", analysis.VIPCount, vipWant)
	}
}

func TestAnalyzeTiedCustomersScoreIdentically(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(now)

	same := func(id string) domain.CustomerFact {
		return domain.CustomerFact{
			CustomerID:       id,
			LastPurchaseDate: daysAgo(now, 7),
			PurchaseCount:    3,
			TotalAmount:      decimal.NewFromInt(150),
		}
	}
	analysis := engine.Analyze(context.Background(), "toko-utama", []domain.CustomerFact{same("x"), same("y"), same("z")})

	first := analysis.Scores[0]
	for _, score := range analysis.Scores[1:] {
		if score.RecencyScore != first.RecencyScore ||
			score.FrequencyScore != first.FrequencyScore ||
			score.MonetaryScore != first.MonetaryScore ||
			score.Segment != first.Segment {
			t.Fatalf("identical facts scored differently: %+v vs %+v", first, score)
		}
	}
}

func TestDaysSinceFloorsFutureDates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	if got := daysSince(now, &future); got != 0 {
		t.Fatalf("expected future purchase date to clamp to 0 days, got %v", got)
	}
	if got := daysSince(now, nil); got != neverPurchasedDays {
		t.Fatalf("expected nil purchase date to map to %d, got %v", neverPurchasedDays, got)
	}
}
