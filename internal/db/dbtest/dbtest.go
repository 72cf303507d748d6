// Package dbtest opens throwaway in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/session_auth/internal/db"
)

func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		_ = db.Close(gdb)
	})
	return gdb
}
