package jobs

import (
	"context"
	"testing"
	"time"

	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/db/dbtest"
	"Gin_postgres_redis_supply_tool/inventory"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobs_SchedulesParse(t *testing.T) {
	repo := db.NewRepo(dbtest.Open(t))
	all := Jobs(repo, inventory.NewLedger(repo))
	assert.Equal(t, []string{"activity:purge", "ledger:verify", "stock:low"}, Names(all))
	for name, j := range all {
		_, err := cron.ParseStandard(j.Schedule)
		assert.NoError(t, err, name)
	}
}

func TestPurgeActivity_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	repo := db.NewRepo(dbtest.Open(t))
	u := dbtest.User(t, repo, "clerk", models.RoleUser)
	now := time.Now()

	require.NoError(t, repo.LogActivity(ctx, &models.ActivityLog{UserID: u.ID, Action: "CREATE_REQUEST", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.LogActivity(ctx, &models.ActivityLog{UserID: u.ID, Action: "DELETE_REQUEST", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, PurgeActivity(ctx, repo, now))

	left, err := repo.ListActivity(ctx, db.ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "DELETE_REQUEST", left[0].Action)
}

func TestVerifyLedger(t *testing.T) {
	ctx := context.Background()
	repo := db.NewRepo(dbtest.Open(t))
	ledger := inventory.NewLedger(repo)
	admin := dbtest.User(t, repo, "admin", models.RoleAdmin)
	it := dbtest.Item(t, repo, "Bond paper", 20, admin.ID)

	require.NoError(t, VerifyLedger(ctx, ledger))

	// 绕过流水直接改库存
	require.NoError(t, repo.DB.Model(&models.Item{}).Where("id = ?", it.ID).Update("quantity", 25).Error)
	assert.Error(t, VerifyLedger(ctx, ledger))
}

func TestLowStockSummary(t *testing.T) {
	repo := db.NewRepo(dbtest.Open(t))
	admin := dbtest.User(t, repo, "admin", models.RoleAdmin)
	dbtest.Item(t, repo, "Stapler", 2, admin.ID)
	assert.NoError(t, LowStockSummary(context.Background(), inventory.NewLedger(repo)))
}
