package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreAnnotated(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	require.Equal(t, "00001_init.sql", files[0])
	require.NoError(t, Validate())
}

func TestRunRequiresDatabase(t *testing.T) {
	err := Run(context.Background(), nil, "up")
	require.ErrorContains(t, err, "db is required")
}

func TestSupportedCommands(t *testing.T) {
	require.True(t, supported("status"))
	require.False(t, supported("create"))
}
