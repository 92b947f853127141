// Package dbtest opens throwaway sqlite databases for package tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a migrated sqlite database in a temp file that is removed with the test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("supply_%d.db", time.Now().UnixNano()))
	conn, err := db.Open(db.Options{Driver: "sqlite", DSN: path, Silent: true})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.Migrate(conn), "migrate")
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func User(t *testing.T, repo *db.Repo, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, DisplayName: username, Role: role, Designation: "Staff"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

// Item inserts an item with the given stock and the matching opening transaction.
func Item(t *testing.T, repo *db.Repo, name string, qty int, createdBy string) *models.Item {
	t.Helper()
	ctx := context.Background()
	it := &models.Item{Name: name, Quantity: qty, Unit: "pcs", MinStockLevel: 5, CreatedBy: createdBy}
	require.NoError(t, repo.CreateItem(ctx, it))
	if qty > 0 {
		require.NoError(t, repo.AppendTransaction(ctx, &models.Transaction{
			ItemID:       it.ID,
			Type:         models.TxIn,
			Quantity:     qty,
			BalanceAfter: qty,
			Notes:        "Initial stock - Item created",
			PerformedBy:  createdBy,
		}))
	}
	return it
}
