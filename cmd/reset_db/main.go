package main

import (
	"context"

	"fulfillment/config"
	"fulfillment/pkg/logger"
	"fulfillment/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	pg, err := postgres.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	defer pg.Close()

	// Tables are kept; they are restaurant setup, not order data.
	_, err = pg.GetPool().Exec(context.Background(),
		"TRUNCATE TABLE order_status_log, location_samples, location_sessions, orders RESTART IDENTITY CASCADE")
	if err != nil {
		log.Error("failed to truncate tables", logger.Error(err))
		return
	}
	log.Info("truncated orders, status log and location data")
}
