package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/panel-curation-server/internal/domain"
)

func TestVersionGate(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	gate := NewVersionGate(logger)

	t.Run("first version always passes", func(t *testing.T) {
		assert.NoError(t, gate.Validate("1.0", "", false))
	})

	t.Run("newer version passes", func(t *testing.T) {
		assert.NoError(t, gate.Validate("1.1", "1.0", false))
		assert.NoError(t, gate.Validate("3.0.0", "3", false))
		assert.NoError(t, gate.Validate("10", "9", false))
	})

	t.Run("same version rejected", func(t *testing.T) {
		err := gate.Validate("1.0", "1.0", false)
		assert.ErrorIs(t, err, domain.ErrStaleVersion)
	})

	t.Run("older version rejected with detail", func(t *testing.T) {
		err := gate.Validate("1.0", "2.0", false)
		var stale *domain.StaleVersionError
		assert.ErrorAs(t, err, &stale)
		assert.Equal(t, "1.0", stale.Version)
		assert.Equal(t, "2.0", stale.Latest)
	})

	t.Run("force bypasses the gate", func(t *testing.T) {
		assert.NoError(t, gate.Validate("1.0", "2.0", true))
	})
}
