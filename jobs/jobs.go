// Package jobs holds the periodic maintenance tasks run by the cron scheduler.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/inventory"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job holds schedule and run function.
type Job struct {
	Schedule string
	Run      func(ctx context.Context) error
}

const jobTimeout = 10 * time.Minute

// Jobs 返回全部定时任务，key 为任务名（cron:start --job 使用）
func Jobs(repo *db.Repo, ledger *inventory.Ledger) map[string]Job {
	return map[string]Job{
		"activity:purge": {
			Schedule: "15 3 * * *",
			Run:      func(ctx context.Context) error { return PurgeActivity(ctx, repo, time.Now()) },
		},
		"ledger:verify": {
			Schedule: "30 2 * * *",
			Run:      func(ctx context.Context) error { return VerifyLedger(ctx, ledger) },
		},
		"stock:low": {
			Schedule: "0 7 * * 1-5",
			Run:      func(ctx context.Context) error { return LowStockSummary(ctx, ledger) },
		},
	}
}

// Names 排序后的任务名
func Names(jobs map[string]Job) []string {
	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start 注册并启动调度器；任务失败只记日志
func Start(jobs map[string]Job) (*cron.Cron, error) {
	log := config.GetLogger()
	c := cron.New()
	for _, name := range Names(jobs) {
		name, j := name, jobs[name]
		_, err := c.AddFunc(j.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			started := time.Now()
			if err := j.Run(ctx); err != nil {
				config.LogError(log, "jobs", name, "scheduled run", nil, err)
				return
			}
			log.WithFields(logrus.Fields{"job": name, "took": time.Since(started).String()}).Info("cron job finished")
		})
		if err != nil {
			return nil, fmt.Errorf("register job %s: %w", name, err)
		}
	}
	c.Start()
	return c, nil
}

func PurgeActivity(ctx context.Context, repo *db.Repo, now time.Time) error {
	n, err := repo.PurgeExpiredActivity(ctx, now)
	if err != nil {
		return err
	}
	config.GetLogger().WithField("deleted", n).Info("expired activity logs purged")
	return nil
}

// VerifyLedger 重放所有物品的流水；有不一致时返回错误
func VerifyLedger(ctx context.Context, ledger *inventory.Ledger) error {
	checked, failed, err := ledger.VerifyAll(ctx)
	if err != nil {
		return err
	}
	config.GetLogger().WithFields(logrus.Fields{"checked": checked, "failed": len(failed)}).Info("ledger verification finished")
	if len(failed) > 0 {
		return fmt.Errorf("ledger verification: %d of %d items do not reconcile", len(failed), checked)
	}
	return nil
}

func LowStockSummary(ctx context.Context, ledger *inventory.Ledger) error {
	items, err := ledger.LowStock(ctx)
	if err != nil {
		return err
	}
	log := config.GetLogger()
	for _, it := range items {
		log.WithFields(logrus.Fields{
			"itemId":   it.ID,
			"item":     it.Name,
			"quantity": it.Quantity,
			"minimum":  it.MinStockLevel,
		}).Warn("low stock")
	}
	log.WithField("count", len(items)).Info("low stock summary")
	return nil
}
