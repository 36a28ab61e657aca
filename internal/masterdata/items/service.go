package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sma-almacen/sma/internal/shared"
)

// Service exposes the item catalog.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService builds the catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Classes lists item classes by name.
func (s *Service) Classes(ctx context.Context) ([]Class, error) {
	return s.repo.ListClasses(ctx)
}

// List returns items matching filter ordered by description.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

// Get resolves a single item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.Invalid("item_id", "Selecciona un elemento válido.")
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new item with zero stock.
func (s *Service) Create(ctx context.Context, in NewItem) (Item, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Location = strings.TrimSpace(in.Location)
	if err := s.check(ctx, in); err != nil {
		return Item{}, err
	}
	item, err := s.repo.Create(ctx, Item{
		ClassID:     in.ClassID,
		Description: in.Description,
		Unit:        in.Unit,
		Location:    in.Location,
		UnitCost:    in.UnitCost.Round(shared.Scale),
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return Item{}, fmt.Errorf("%w: ya existe un elemento con la descripción %q", shared.ErrDuplicate, in.Description)
		}
		return Item{}, err
	}
	return item, nil
}

func (s *Service) check(ctx context.Context, in NewItem) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	if in.UnitCost.IsNegative() {
		return shared.Invalid("unit_cost", "El costo unitario no puede ser negativo.")
	}
	if !shared.HasScale(in.UnitCost) {
		return shared.Invalid("unit_cost", "El costo unitario admite como máximo %d decimales.", shared.Scale)
	}
	ok, err := s.repo.ClassExists(ctx, in.ClassID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.Invalid("class_id", "La clase seleccionada no existe.")
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "Description":
		if fe.Tag() == "max" {
			return shared.Invalid("description", "La descripción admite como máximo 250 caracteres.")
		}
		return shared.Invalid("description", "La descripción es obligatoria.")
	case "ClassID":
		return shared.Invalid("class_id", "La clase es obligatoria.")
	case "Unit":
		if fe.Tag() == "max" {
			return shared.Invalid("unit", "La unidad admite como máximo 10 caracteres.")
		}
		return shared.Invalid("unit", "La unidad es obligatoria.")
	default:
		return shared.Invalid(fe.Field(), "Valor inválido.")
	}
}
