package cache

import (
	"context"
	"time"

	"tokolaris/backend/internal/domain"
)

type AnalysisCache interface {
	Get(ctx context.Context, key string) (*domain.RFMAnalysis, bool, error)
	Set(ctx context.Context, key string, value *domain.RFMAnalysis, ttl time.Duration) error
}

type NoopAnalysisCache struct{}

func (NoopAnalysisCache) Get(_ context.Context, _ string) (*domain.RFMAnalysis, bool, error) {
	return nil, false, nil
}

func (NoopAnalysisCache) Set(_ context.Context, _ string, _ *domain.RFMAnalysis, _ time.Duration) error {
	return nil
}
