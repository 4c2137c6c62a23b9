package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

var ErrInvalidValue = fmt.Errorf("settings: %w", httpx.ErrValidation)

var hundred = decimal.NewFromInt(100)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// GetAll returns every stored setting.
func (s *Service) GetAll(ctx context.Context) (map[string]string, error) {
	values, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings: load: %w", err)
	}
	return values, nil
}

// Upsert stores each pair. Keys are trimmed; the tax rate must be a
// percentage between 0 and 100.
func (s *Service) Upsert(ctx context.Context, values map[string]string) (map[string]string, error) {
	clean := make(map[string]string, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidValue)
		}
		if key == KeyTaxRate {
			if _, err := parsePercent(v); err != nil {
				return nil, err
			}
		}
		clean[key] = v
	}
	if len(clean) > 0 {
		if err := s.repo.Upsert(ctx, clean); err != nil {
			return nil, fmt.Errorf("settings: upsert: %w", err)
		}
	}
	return s.GetAll(ctx)
}

// TaxRate returns tva_taux as a fraction (20 becomes 0.20), or fallback
// when the setting is missing.
func (s *Service) TaxRate(ctx context.Context, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, ok, err := s.repo.Get(ctx, KeyTaxRate)
	if err != nil {
		return fallback, fmt.Errorf("settings: tax rate: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	pct, err := parsePercent(raw)
	if err != nil {
		return fallback, err
	}
	return pct.Div(hundred), nil
}

// Sender returns the configured sender address, or fallback.
func (s *Service) Sender(ctx context.Context, fallback string) string {
	raw, ok, err := s.repo.Get(ctx, KeyEmailSender)
	if err != nil {
		s.logger.Warn("load email sender", slog.Any("error", err))
		return fallback
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	return strings.TrimSpace(raw)
}

// Company returns the letterhead, with defaults for missing keys.
func (s *Service) Company(ctx context.Context) (Company, error) {
	values, err := s.GetAll(ctx)
	if err != nil {
		return Company{}, err
	}
	merged := make(map[string]string, len(Defaults))
	for k, v := range Defaults {
		merged[k] = v
	}
	for k, v := range values {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	return companyFrom(merged), nil
}

func parsePercent(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number", ErrInvalidValue, KeyTaxRate)
	}
	if v.IsNegative() || v.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalidValue, KeyTaxRate)
	}
	return v, nil
}
