package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Strategy selects how sequence values are produced.
type Strategy string

const (
	// StrategyCounter increments a per kind and year counter row atomically.
	StrategyCounter Strategy = "counter"
	// StrategyScan takes the highest sequence issued for the year, plus one.
	StrategyScan Strategy = "scan"
)

// Store is the persistence side of numbering. Both calls must run inside the
// transaction that inserts the numbered document.
type Store interface {
	// LastSequence returns the highest sequence issued for kind in year, or
	// 0 when none was. Deleted documents may leave gaps below it.
	LastSequence(ctx context.Context, kind Kind, year int) (int, error)
	IncrementSequence(ctx context.Context, kind Kind, year int) (int, error)
}

// Locker serialises allocations across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}

// Config configures the Service.
type Config struct {
	Strategy    Strategy
	MaxAttempts int
	Location    *time.Location
}

// Service allocates document numbers.
type Service struct {
	strategy    Strategy
	maxAttempts int
	location    *time.Location
	locker      Locker
	logger      *slog.Logger
	now         func() time.Time
}

type attemptKey struct{}

// NewService builds a Service. locker may be nil.
func NewService(cfg Config, locker Locker, logger *slog.Logger) (*Service, error) {
	switch cfg.Strategy {
	case "":
		cfg.Strategy = StrategyCounter
	case StrategyCounter, StrategyScan:
	default:
		return nil, fmt.Errorf("numbering: unknown strategy %q", cfg.Strategy)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		strategy:    cfg.Strategy,
		maxAttempts: cfg.MaxAttempts,
		location:    cfg.Location,
		locker:      locker,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Strategy returns the active strategy.
func (s *Service) Strategy() Strategy {
	return s.strategy
}

// Year returns the numbering year for the current instant.
func (s *Service) Year() int {
	return s.now().In(s.location).Year()
}

// Next allocates the next number of kind for the current year.
func (s *Service) Next(ctx context.Context, store Store, kind Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	year := s.Year()
	var seq int
	switch s.strategy {
	case StrategyScan:
		last, err := store.LastSequence(ctx, kind, year)
		if err != nil {
			return "", fmt.Errorf("last %s sequence: %w", kind, err)
		}
		// A conflicting retry steps past a number taken concurrently.
		attempt, _ := ctx.Value(attemptKey{}).(int)
		seq = last + 1 + attempt
	default:
		value, err := store.IncrementSequence(ctx, kind, year)
		if err != nil {
			return "", fmt.Errorf("increment %s sequence: %w", kind, err)
		}
		seq = value
	}
	return Format(kind, year, seq), nil
}

// Peek returns the number the scan strategy would allocate next without
// allocating it.
func (s *Service) Peek(ctx context.Context, store Store, kind Kind, year int) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	last, err := store.LastSequence(ctx, kind, year)
	if err != nil {
		return "", fmt.Errorf("last %s sequence: %w", kind, err)
	}
	return Format(kind, year, last+1), nil
}

// Run executes a unit of work that allocates a number of kind, retrying the
// whole unit when fn reports ErrConflict. With the scan strategy and a locker
// configured, the unit runs under a lock scoped to kind and year.
func (s *Service) Run(ctx context.Context, kind Kind, fn func(context.Context) error) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if s.strategy == StrategyScan && s.locker != nil {
		key := fmt.Sprintf("numbering:%s:%d", kind.Prefix(), s.Year())
		release, err := s.locker.Lock(ctx, key)
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("numbering lock release", slog.String("key", key), slog.Any("error", err))
			}
		}()
	}

	var err error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err = fn(context.WithValue(ctx, attemptKey{}, attempt))
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		s.logger.Warn("numbering conflict, retrying",
			slog.String("kind", string(kind)),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}
	return err
}
