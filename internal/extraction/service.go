package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ttacon/libphonenumber"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

// DefaultTimeout bounds one assisted extraction.
const DefaultTimeout = 20 * time.Second

// Outcomes reported to the Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

// ErrEmptyRequest rejects blank request text.
var ErrEmptyRequest = fmt.Errorf("%w: request text is required", httpx.ErrValidation)

// Recorder receives one observation per extraction attempt.
type Recorder interface {
	Extraction(strategy, outcome string)
}

// Service picks the assisted extractor when configured and falls back to
// the heuristic on any failure.
type Service struct {
	assisted  Extractor
	heuristic Extractor
	timeout   time.Duration
	region    string
	recorder  Recorder
	logger    *slog.Logger
}

// NewService creates an extraction service. assisted may be nil.
func NewService(assisted Extractor, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		assisted:  assisted,
		heuristic: Heuristic{},
		timeout:   timeout,
		region:    "FR",
		logger:    logger,
	}
}

// SetRecorder wires extraction metrics.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Analyze extracts a quote draft from text. It only fails on blank input.
func (s *Service) Analyze(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyRequest
	}

	if s.assisted != nil {
		res, err := s.runAssisted(ctx, text)
		if err == nil {
			s.record(StrategyAssisted, OutcomeOK)
			return s.finish(res), nil
		}
		s.logger.Warn("assisted extraction failed, using heuristic", slog.Any("error", err))
		s.record(StrategyAssisted, OutcomeFallback)
	}

	res, err := s.heuristic.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	s.record(StrategyHeuristic, OutcomeOK)
	return s.finish(res), nil
}

func (s *Service) runAssisted(ctx context.Context, text string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.assisted.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrEmptyOutput
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		return nil, fmt.Errorf("extraction: confidence %v out of range", res.Confidence)
	}
	res.Strategy = StrategyAssisted
	return res, nil
}

func (s *Service) finish(res *Result) *Result {
	if res.Product.Finishes == nil {
		res.Product.Finishes = []string{}
	}
	res.Client.PhoneE164 = NormalizePhone(res.Client.Phone, s.region)
	return res
}

func (s *Service) record(strategy Strategy, outcome string) {
	if s.recorder != nil {
		s.recorder.Extraction(string(strategy), outcome)
	}
}

// NormalizePhone returns raw in E.164 form, or "" when it is not a valid
// number for region.
func NormalizePhone(raw, region string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return ""
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
