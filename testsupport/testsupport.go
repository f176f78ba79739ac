// Package testsupport wires integration tests to a disposable Postgres
// database. Tests using it skip unless TEST_DATABASE_DSN is set.
package testsupport

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"certipanel/database"
	"certipanel/hierarchy"
	"certipanel/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping database test")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// UniqueName prefixes a username with a run-unique tag so repeated runs
// against the same database never collide on the username index.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// CreateChain creates a root and a straight line of descendants under it,
// depth users long. Index 0 is root.
func CreateChain(t *testing.T, db *gorm.DB, depth int) []models.User {
	t.Helper()

	dir := hierarchy.NewDirectory(db)

	root, err := dir.CreateUserUnderParent(hierarchy.NewUser{
		Username:     UniqueName("root"),
		PasswordHash: "x",
		Role:         models.RoleRoot,
	})
	require.NoError(t, err)

	users := []models.User{root}
	parent := root
	for level := 1; level <= depth; level++ {
		role := models.RoleReseller
		if level > 1 {
			role = models.RoleSubReseller
		}
		parentID := parent.ID
		u, err := dir.CreateUserUnderParent(hierarchy.NewUser{
			Username:     UniqueName(fmt.Sprintf("seller%d", level)),
			PasswordHash: "x",
			Role:         role,
			ParentID:     &parentID,
		})
		require.NoError(t, err)
		users = append(users, u)
		parent = u
	}
	return users
}

// CreatePlan inserts an active plan with a unique code.
func CreatePlan(t *testing.T, db *gorm.DB) models.Plan {
	t.Helper()

	plan := models.Plan{
		Code:     UniqueName("plan"),
		Title:    "Test Certificate Plan",
		Category: "certificate",
		IsActive: true,
	}
	require.NoError(t, db.Create(&plan).Error)
	return plan
}
