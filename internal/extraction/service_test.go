package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
	"github.com/rapid-pub/backoffice/internal/sales"
)

type stubExtractor struct {
	res   *Result
	err   error
	calls int
	delay time.Duration
}

func (s *stubExtractor) Extract(ctx context.Context, _ string) (*Result, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.res, s.err
}

type recorded struct{ strategy, outcome string }

type fakeRecorder struct{ seen []recorded }

func (f *fakeRecorder) Extraction(strategy, outcome string) {
	f.seen = append(f.seen, recorded{strategy, outcome})
}

func newTestService(assisted Extractor) (*Service, *fakeRecorder) {
	svc := NewService(assisted, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &fakeRecorder{}
	svc.SetRecorder(rec)
	return svc, rec
}

const sampleRequest = "500 flyers A5 recto-verso papier 350g vernis sélectif, contact: jean@acme.fr, 06 12 34 56 78"

func TestServiceUsesHeuristicWithoutAssistant(t *testing.T) {
	svc, rec := newTestService(nil)

	res, err := svc.Analyze(context.Background(), sampleRequest)
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, res.Strategy)
	assert.Equal(t, sales.ProductFlyers, res.Product.Type)
	assert.Equal(t, "06 12 34 56 78", res.Client.Phone)
	assert.Equal(t, "+33612345678", res.Client.PhoneE164)
	assert.Equal(t, []recorded{{"heuristic", OutcomeOK}}, rec.seen)
}

func TestServiceRejectsBlankRequest(t *testing.T) {
	svc, rec := newTestService(nil)

	_, err := svc.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyRequest)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Empty(t, rec.seen)
}

func TestServicePrefersAssistant(t *testing.T) {
	qty := 200
	assistant := &stubExtractor{res: &Result{
		Client:     ClientInfo{Name: "Jean Martin", Phone: "0612345678"},
		Product:    ProductInfo{Type: sales.ProductPosters, Quantity: &qty},
		Confidence: 0.92,
	}}
	svc, rec := newTestService(assistant)

	res, err := svc.Analyze(context.Background(), sampleRequest)
	require.NoError(t, err)

	assert.Equal(t, StrategyAssisted, res.Strategy)
	assert.Equal(t, sales.ProductPosters, res.Product.Type)
	assert.Equal(t, "Jean Martin", res.Client.Name)
	assert.Equal(t, "+33612345678", res.Client.PhoneE164)
	assert.NotNil(t, res.Product.Finishes)
	assert.Equal(t, []recorded{{"assisted", OutcomeOK}}, rec.seen)
}

func TestServiceFallsBackOnAssistantFailure(t *testing.T) {
	tests := []struct {
		name      string
		assistant *stubExtractor
	}{
		{"error", &stubExtractor{err: errors.New("upstream 502")}},
		{"nil result", &stubExtractor{}},
		{"confidence above one", &stubExtractor{res: &Result{Confidence: 1.5}}},
		{"negative confidence", &stubExtractor{res: &Result{Confidence: -0.1}}},
		{"timeout", &stubExtractor{res: &Result{Confidence: 0.9}, delay: time.Minute}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestService(tt.assistant)
			svc.timeout = 10 * time.Millisecond

			res, err := svc.Analyze(context.Background(), sampleRequest)
			require.NoError(t, err)

			assert.Equal(t, 1, tt.assistant.calls)
			assert.Equal(t, StrategyHeuristic, res.Strategy)
			assert.Equal(t, HeuristicConfidence, res.Confidence)
			assert.Equal(t, []recorded{
				{"assisted", OutcomeFallback},
				{"heuristic", OutcomeOK},
			}, rec.seen)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+33612345678", NormalizePhone("06 12 34 56 78", "FR"))
	assert.Equal(t, "+33123456789", NormalizePhone("+33123456789", "FR"))
	assert.Empty(t, NormalizePhone("", "FR"))
	assert.Empty(t, NormalizePhone("12", "FR"))
}

func TestHandlerAnalyze(t *testing.T) {
	svc, _ := newTestService(nil)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)

	t.Run("ok", func(t *testing.T) {
		body, _ := json.Marshal(AnalyzeRequest{Request: sampleRequest})
		req := httptest.NewRequest(http.MethodPost, "/ai/analyze", strings.NewReader(string(body)))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var res Result
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, sales.ProductFlyers, res.Product.Type)
		assert.Equal(t, "jean@acme.fr", res.Client.Email)
		assert.Equal(t, StrategyHeuristic, res.Strategy)
	})

	for _, body := range []string{`{"request": ""}`, `{"request": "   "}`, `{}`, ``} {
		req := httptest.NewRequest(http.MethodPost, "/ai/analyze", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}
