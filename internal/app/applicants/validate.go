package applicants

import (
	"errors"
	"strings"

	"github.com/asaskevich/govalidator"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	if !govalidator.StringLength(email, "3", "254") || !govalidator.IsEmail(email) {
		return errors.New("must be a valid email address")
	}
	return nil
}

// validateDocument returns the normalized document number.
func validateDocument(docType domain.DocumentType, number string) (string, error) {
	n := domain.NormalizeDocumentNumber(number)
	switch docType {
	case domain.DocumentPassport:
		if !govalidator.StringLength(n, "3", "20") || !govalidator.IsAlphanumeric(n) {
			return "", errors.New("passport must be 3 to 20 letters or digits")
		}
	default:
		if !govalidator.StringLength(n, "13", "13") || !govalidator.IsNumeric(n) {
			return "", errors.New("DPI must be exactly 13 digits")
		}
	}
	return n, nil
}

func requireText(details map[string]any, field, value string) string {
	v := domain.NormalizeHumanName(value)
	if v == "" {
		details[field] = "must be non-empty"
	}
	return v
}

func resolveRole(kind domain.RecordKind, raw string) (*domain.Role, error) {
	raw = strings.TrimSpace(raw)
	if !kind.HasRole() {
		if raw != "" {
			return nil, errors.New("parking applications do not take a role")
		}
		return nil, nil
	}
	if raw == "" {
		r := domain.RoleAthlete
		return &r, nil
	}
	r, ok := domain.ParseRole(raw)
	if !ok {
		return nil, errors.New("unknown role")
	}
	return &r, nil
}
