package repository

import (
	"fmt"
	"strings"
	"testing"

	"accessgate/internal/database"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:repository_test_%s?mode=memory&cache=shared", name)
	db, err := database.Connect(dsn, zerolog.Nop())
	require.NoError(t, err, "failed to open sqlite db")
	require.NoError(t, database.Migrate(db), "failed to migrate db")
	return db
}
