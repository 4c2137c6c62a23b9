package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

type mockRepository struct {
	clients map[uuid.UUID]*Client
	created int
}

func newMockRepository() *mockRepository {
	return &mockRepository{clients: map[uuid.UUID]*Client{}}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*Client, error) {
	for _, c := range m.clients {
		if c.Email != nil && strings.EqualFold(*c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) FindByName(ctx context.Context, name string) (*Client, error) {
	for _, c := range m.clients {
		if strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) List(ctx context.Context) ([]WithStats, error) {
	out := make([]WithStats, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, WithStats{Client: *c, RevenueTotal: decimal.Zero})
	}
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, client Client) (*Client, error) {
	client.ID = uuid.New()
	client.CreatedAt = time.Now()
	client.UpdatedAt = client.CreatedAt
	m.clients[client.ID] = &client
	m.created++
	cp := client
	return &cp, nil
}

func (m *mockRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	c, ok := m.clients[id]
	if !ok {
		return ErrNotFound
	}
	for field, v := range updates {
		s := v.(string)
		switch field {
		case "name":
			c.Name = s
		case "email":
			c.Email = &s
		case "phone":
			c.Phone = &s
		case "address":
			c.Address = &s
		case "company":
			c.Company = &s
		case "notes":
			c.Notes = &s
		case "status":
			c.Status = Status(s)
		}
	}
	return nil
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func ptr(s string) *string { return &s }

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateClientRequest{Name: "   "})

	assert.ErrorIs(t, err, ErrNameRequired)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateStoresActiveClient(t *testing.T) {
	svc, _ := newTestService()

	c, err := svc.Create(context.Background(), CreateClientRequest{Name: " Imprimerie Martin ", Email: ptr("contact@martin.fr")})
	require.NoError(t, err)

	assert.Equal(t, "Imprimerie Martin", c.Name)
	assert.Equal(t, StatusActive, c.Status)
}

func TestUpdateOnlyTouchesGivenFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateClientRequest{Name: "Martin", Email: ptr("a@b.fr"), Phone: ptr("0612345678")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, c.ID, UpdateClientRequest{Company: ptr("Martin SARL")})
	require.NoError(t, err)

	assert.Equal(t, "Martin", updated.Name)
	assert.Equal(t, "a@b.fr", *updated.Email)
	assert.Equal(t, "0612345678", *updated.Phone)
	assert.Equal(t, "Martin SARL", *updated.Company)
}

func TestUpdateMissingClient(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), uuid.New(), UpdateClientRequest{Notes: ptr("x")})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMatchesEmailFirst(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	byEmail, _ := svc.Create(ctx, CreateClientRequest{Name: "Jean D.", Email: ptr("jean@acme.fr")})
	_, _ = svc.Create(ctx, CreateClientRequest{Name: "Jean Dupont"})

	got, err := svc.Resolve(ctx, Reference{Name: "Jean Dupont", Email: ptr("JEAN@acme.fr")})
	require.NoError(t, err)

	assert.Equal(t, byEmail.ID, got.ID)
	assert.Equal(t, 2, repo.created)
}

func TestResolveMatchesNameIgnoringCase(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	existing, _ := svc.Create(ctx, CreateClientRequest{Name: "Boulangerie Paul"})

	got, err := svc.Resolve(ctx, Reference{Name: "boulangerie paul", Email: ptr("paul@pain.fr")})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, 1, repo.created)
}

func TestResolveCreatesUnknownClient(t *testing.T) {
	svc, repo := newTestService()

	got, err := svc.Resolve(context.Background(), Reference{Name: "Nouveau Client", Phone: ptr("0102030405")})
	require.NoError(t, err)

	assert.Equal(t, "Nouveau Client", got.Name)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, 1, repo.created)
}

func TestHandlerCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(`{"email":"a@b.fr"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(`{"name":"Martin"}`)))
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clients", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Martin"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clients/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
