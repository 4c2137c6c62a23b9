package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

var ErrNameRequired = fmt.Errorf("client name is required: %w", httpx.ErrValidation)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, req CreateClientRequest) (*Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	client, err := s.repo.Create(ctx, Client{
		Name:    name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Company: req.Company,
		Notes:   req.Notes,
		Status:  StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]WithStats, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateClientRequest) (*Client, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		updates["name"] = name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.Status != nil {
		updates["status"] = string(*req.Status)
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Resolve returns the client matching ref, creating it when nothing matches.
func (s *Service) Resolve(ctx context.Context, ref Reference) (*Client, error) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	var resolved *Client
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if ref.Email != nil && *ref.Email != "" {
			c, err := repo.FindByEmail(ctx, *ref.Email)
			if err == nil {
				resolved = c
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		c, err := repo.FindByName(ctx, name)
		if err == nil {
			resolved = c
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		resolved, err = repo.Create(ctx, Client{
			Name:    name,
			Email:   ref.Email,
			Phone:   ref.Phone,
			Company: ref.Company,
			Status:  StatusActive,
		})
		if err != nil {
			return err
		}
		s.logger.Info("client created implicitly", slog.String("client_id", resolved.ID.String()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}
	return resolved, nil
}
