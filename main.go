package main

import (
	"Gin_postgres_redis_supply_tool/cmd"
	"Gin_postgres_redis_supply_tool/config"
)

func main() {
	config.LoadEnv()
	cmd.Execute()
}
