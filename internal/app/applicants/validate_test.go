package applicants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"ana@example.com", "j.perez+carnet@correo.org.gt"} {
		assert.NoError(t, validateEmail(ok), ok)
	}
	for _, bad := range []string{"", "user@localhost", "Ana <ana@example.com>", "ana@", "@example.com", "ana example@example.com"} {
		assert.Error(t, validateEmail(bad), bad)
	}
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	n, err := validateDocument(domain.DocumentDPI, " 1234 56789 0123 ")
	require.NoError(t, err)
	assert.Equal(t, "1234567890123", n)

	for _, bad := range []string{"123456789012", "12345678901234", "12345678901AB", "1234-567890123", ""} {
		_, err := validateDocument(domain.DocumentDPI, bad)
		assert.Error(t, err, bad)
	}

	n, err = validateDocument(domain.DocumentPassport, "gt 12345a")
	require.NoError(t, err)
	assert.Equal(t, "GT12345A", n)

	for _, bad := range []string{"AB", "A123456789012345678901", "AB-123", "ÑANDÚ123"} {
		_, err := validateDocument(domain.DocumentPassport, bad)
		assert.Error(t, err, bad)
	}
}
