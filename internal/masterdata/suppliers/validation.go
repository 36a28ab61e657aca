package suppliers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sma-almacen/sma/internal/shared"
)

func normalize(sup Supplier) Supplier {
	sup.Name = strings.TrimSpace(sup.Name)
	sup.TaxID = strings.ToUpper(strings.TrimSpace(sup.TaxID))
	sup.Contact = strings.TrimSpace(sup.Contact)
	sup.Address = strings.TrimSpace(sup.Address)
	sup.LineOfBusiness = strings.TrimSpace(sup.LineOfBusiness)
	return sup
}

func (s *Service) check(sup Supplier) error {
	if err := s.validate.Struct(sup); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "Name":
		if fe.Tag() == "max" {
			return shared.Invalid("nombre", "El nombre admite como máximo 200 caracteres.")
		}
		return shared.Invalid("nombre", "El nombre del proveedor es obligatorio.")
	case "TaxID":
		return shared.Invalid("rfc", "El RFC admite como máximo 13 caracteres.")
	case "Contact":
		return shared.Invalid("contacto", "El contacto admite como máximo 200 caracteres.")
	case "LineOfBusiness":
		return shared.Invalid("giro", "El giro admite como máximo 100 caracteres.")
	default:
		return shared.Invalid(fe.Field(), "Valor inválido.")
	}
}
