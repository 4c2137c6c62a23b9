package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
	"github.com/rapid-pub/backoffice/internal/sales"
	"github.com/rapid-pub/backoffice/jobs"
)

type fakeQueue struct {
	payloads []jobs.SendEmailPayload
	err      error
}

func (f *fakeQueue) EnqueueSendEmail(_ context.Context, p jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, p)
	return &asynq.TaskInfo{ID: p.MessageID, Queue: jobs.QueueDefault}, nil
}

type fakeReminder struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeReminder) RemindQuote(_ context.Context, id uuid.UUID) (*sales.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, id)
	return &sales.Quote{ID: id, ReminderCount: len(f.calls)}, nil
}

type fixedSender string

func (s fixedSender) Sender(_ context.Context, fallback string) string {
	if s == "" {
		return fallback
	}
	return string(s)
}

func newTestService(queue Queue, reminder *fakeReminder, sender SenderSource) *Service {
	return NewService(queue, reminder, sender, "noreply@rapid-pub.fr", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSendQueuesMessage(t *testing.T) {
	queue := &fakeQueue{}
	svc := newTestService(queue, &fakeReminder{}, fixedSender("devis@rapid-pub.fr"))

	receipt, err := svc.Send(context.Background(), Request{
		Type:    TypeQuote,
		To:      " jean@acme.fr",
		Subject: "Votre devis",
		Message: "Bonjour",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, receipt.Status)
	assert.Equal(t, "devis@rapid-pub.fr", receipt.From)
	require.Len(t, queue.payloads, 1)
	p := queue.payloads[0]
	assert.Equal(t, receipt.ID.String(), p.MessageID)
	assert.Equal(t, "jean@acme.fr", p.To)
	assert.Equal(t, "devis@rapid-pub.fr", p.From)
	assert.Equal(t, "Bonjour", p.Body)
}

func TestSendSimulatesWithoutQueue(t *testing.T) {
	svc := newTestService(nil, &fakeReminder{}, fixedSender(""))

	receipt, err := svc.Send(context.Background(), Request{To: "jean@acme.fr", Subject: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, StatusSimulated, receipt.Status)
	assert.Equal(t, "noreply@rapid-pub.fr", receipt.From)
}

func TestSendValidation(t *testing.T) {
	svc := newTestService(&fakeQueue{}, &fakeReminder{}, nil)
	for name, req := range map[string]Request{
		"missing to":        {Subject: "x"},
		"bad to":            {To: "not-an-email", Subject: "x"},
		"missing subject":   {To: "jean@acme.fr"},
		"unknown type":      {Type: "newsletter", To: "jean@acme.fr", Subject: "x"},
		"reminder no quote": {Type: TypeReminder, To: "jean@acme.fr", Subject: "x"},
		"relance no quote":  {Type: TypeRelance, To: "jean@acme.fr", Subject: "x"},
	} {
		_, err := svc.Send(context.Background(), req)
		assert.ErrorIs(t, err, httpx.ErrValidation, name)
	}
}

func TestSendReminderAppliesTransition(t *testing.T) {
	queue := &fakeQueue{}
	reminder := &fakeReminder{}
	svc := newTestService(queue, reminder, nil)
	id := uuid.New()

	receipt, err := svc.Send(context.Background(), Request{Type: TypeReminder, QuoteID: &id, To: "jean@acme.fr", Subject: "Relance"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, reminder.calls)
	require.NotNil(t, receipt.Quote)
	assert.Equal(t, 1, receipt.Quote.ReminderCount)
	assert.Len(t, queue.payloads, 1)
}

func TestSendRelanceAppliesTransition(t *testing.T) {
	queue := &fakeQueue{}
	reminder := &fakeReminder{}
	svc := newTestService(queue, reminder, nil)
	id := uuid.New()

	_, err := svc.Send(context.Background(), Request{Type: TypeRelance, QuoteID: &id, To: "jean@acme.fr", Subject: "Relance"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, reminder.calls)
	assert.Len(t, queue.payloads, 1)
}

func TestSendRejectedReminderSendsNothing(t *testing.T) {
	queue := &fakeQueue{}
	svc := newTestService(queue, &fakeReminder{err: sales.ErrInvalidTransition}, nil)
	id := uuid.New()

	_, err := svc.Send(context.Background(), Request{Type: TypeReminder, QuoteID: &id, To: "jean@acme.fr", Subject: "Relance"})
	assert.ErrorIs(t, err, sales.ErrInvalidTransition)
	assert.Empty(t, queue.payloads)
}

func TestSendQuoteTypeIgnoresQuoteID(t *testing.T) {
	reminder := &fakeReminder{}
	svc := newTestService(&fakeQueue{}, reminder, nil)
	id := uuid.New()

	_, err := svc.Send(context.Background(), Request{Type: TypeQuote, QuoteID: &id, To: "jean@acme.fr", Subject: "Devis"})
	require.NoError(t, err)
	assert.Empty(t, reminder.calls)
}

func TestSendEnqueueFailure(t *testing.T) {
	svc := newTestService(&fakeQueue{err: errors.New("redis down")}, &fakeReminder{}, nil)
	_, err := svc.Send(context.Background(), Request{To: "jean@acme.fr", Subject: "x"})
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpx.StatusFor(err))
}

func TestHandler(t *testing.T) {
	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	NewHandler(logger, newTestService(&fakeQueue{}, &fakeReminder{}, nil)).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/email", strings.NewReader(`{"to":"jean@acme.fr","subject":"Devis"}`)))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/email", strings.NewReader(`{"to":"jean@acme.fr"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	simulated := chi.NewRouter()
	NewHandler(logger, newTestService(nil, &fakeReminder{}, nil)).MountRoutes(simulated)
	rr = httptest.NewRecorder()
	simulated.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/email", strings.NewReader(`{"to":"jean@acme.fr","subject":"Devis"}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"simulated"`)
}
