package migrate

import (
	"io/fs"
	"os"
	"strings"
	"testing"

	"coursehub/cmd/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsBadInput(t *testing.T) {
	require.Error(t, Run("", "up"))
	require.ErrorContains(t, Run("postgres://localhost/x", "sideways"), "direction")

	_, _, err := Version("")
	require.Error(t, err)
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %q", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestRun_UpDownUp(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("COURSEHUB_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("integration test skipped: COURSEHUB_TEST_DATABASE_URL is not set")
	}

	require.NoError(t, Run(dsn, "up"))
	require.NoError(t, Run(dsn, "up"), "second up is a no-op")

	v, dirty, err := Version(dsn)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 1, v)
}
