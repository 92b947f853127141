package config

import (
	"github.com/joho/godotenv"
)

// LoadEnv 读取 .env（不存在时忽略，环境变量可由部署平台注入）
func LoadEnv() {
	_ = godotenv.Load()
}
