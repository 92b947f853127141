package app

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/db"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client     // 可为 nil：未配置 REDIS_ADDR 时不启用
	Locker *redislock.Client // 基于 RDB 的分布式锁
	Config Config
}

// Config 从环境变量读取
type Config struct {
	DB              db.Options
	RedisAddr       string
	RedisPwd        string
	WebOrigin       string
	JWTSecret       string
	AdminUsernames  []string
	RISTemplatePath string
	RISTimezone     string
	ActivityLogTTL  time.Duration
	BootstrapAdmin  string
	Port            string
}

// IsAdminUsername 白名单里的用户名视为管理员
func (c Config) IsAdminUsername(username string) bool {
	u := strings.ToLower(strings.TrimSpace(username))
	for _, admin := range c.AdminUsernames {
		if u == admin {
			return true
		}
	}
	return false
}

func MustNew() *App {
	cfg := LoadConfig()
	log := config.GetLogger()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// --- DB ---
	dbConn := db.ConnectDB(cfg.DB)

	// --- Redis（可选）---
	var (
		rdb    *redis.Client
		locker *redislock.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		locker = redislock.New(rdb)
	} else {
		log.Warn("REDIS_ADDR not set; last-seen throttling and RIS locks disabled")
	}

	// --- Gin ---
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)
	return &App{Router: r, DB: dbConn, RDB: rdb, Locker: locker, Config: cfg}
}

func (a *App) Close() {
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func LoadConfig() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	ttlDays, err := strconv.Atoi(get("ACTIVITY_LOG_TTL_DAYS", "90"))
	if err != nil || ttlDays <= 0 {
		ttlDays = 90
	}
	adminsCSV := os.Getenv("ADMIN_USERNAMES") // 例如: "admin,supply.officer"
	var admins []string
	for _, s := range strings.Split(adminsCSV, ",") {
		if t := strings.TrimSpace(s); t != "" {
			admins = append(admins, strings.ToLower(t))
		}
	}
	return Config{
		DB:              db.OptionsFromEnv(),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPwd:        os.Getenv("REDIS_PASSWORD"),
		WebOrigin:       get("WEB_ORIGIN", "http://localhost:5173"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AdminUsernames:  admins,
		RISTemplatePath: os.Getenv("RIS_TEMPLATE_PATH"),
		RISTimezone:     os.Getenv("RIS_TIMEZONE"),
		ActivityLogTTL:  time.Duration(ttlDays) * 24 * time.Hour,
		BootstrapAdmin:  strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN")),
		Port:            get("PORT", "3001"),
	}
}
