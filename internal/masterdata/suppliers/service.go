package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/sma-almacen/sma/internal/shared"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

// Active lists every active supplier, used by the entry cart selector.
func (s *Service) Active(ctx context.Context) ([]Supplier, error) {
	list, _, err := s.repo.List(ctx, ListFilters{ActiveOnly: true})
	return list, err
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.Invalid("proveedor", "Selecciona un proveedor válido.")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier = normalize(supplier)
	if err := s.check(supplier); err != nil {
		return Supplier{}, err
	}
	created, err := s.repo.Create(ctx, supplier)
	return created, duplicateTaxID(err, supplier.TaxID)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) error {
	if id <= 0 {
		return shared.ErrNotFound
	}
	supplier = normalize(supplier)
	if err := s.check(supplier); err != nil {
		return err
	}
	return duplicateTaxID(s.repo.Update(ctx, id, supplier), supplier.TaxID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func duplicateTaxID(err error, taxID string) error {
	if err != nil && errors.Is(err, shared.ErrDuplicate) {
		return fmt.Errorf("%w: rfc %s", shared.ErrDuplicate, taxID)
	}
	return err
}
