package inventory

import (
	"context"
	"testing"

	"Gin_postgres_redis_supply_tool/db/dbtest"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_ReplayMatches(t *testing.T) {
	l, repo, admin := newLedger(t)
	ctx := context.Background()
	it := dbtest.Item(t, repo, "Tape", 50, admin.ID)

	_, err := l.RecordMovement(ctx, admin.ID, MovementInput{ItemID: it.ID, Type: models.TxOut, Quantity: 20})
	require.NoError(t, err)
	_, err = l.RecordMovement(ctx, admin.ID, MovementInput{ItemID: it.ID, Type: models.TxIn, Quantity: 50})
	require.NoError(t, err)

	rep, err := l.Verify(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, rep.OK)
	assert.Equal(t, 3, rep.Entries)
	assert.Equal(t, 80, rep.Replayed)
	assert.Equal(t, 80, rep.Quantity)
}

func TestVerify_DetectsDrift(t *testing.T) {
	l, repo, admin := newLedger(t)
	ctx := context.Background()
	it := dbtest.Item(t, repo, "Glue", 10, admin.ID)

	// 绕过账本直接改库存
	require.NoError(t, repo.DB.Model(&models.Item{}).Where("id = ?", it.ID).Update("quantity", 7).Error)

	rep, err := l.Verify(ctx, it.ID)
	require.NoError(t, err)
	assert.False(t, rep.OK)
	assert.Empty(t, rep.Mismatches)
	assert.Equal(t, 10, rep.Replayed)

	checked, failed, err := l.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, checked)
	require.Len(t, failed, 1)
	assert.Equal(t, it.ID, failed[0].ItemID)
}
