package main

import (
	"go.uber.org/fx"

	"dealersign/internal/config"
	deliveryhttp "dealersign/internal/delivery/http"
	"dealersign/internal/infrastructure/audit"
	"dealersign/internal/infrastructure/database"
	"dealersign/internal/infrastructure/logger"
	"dealersign/internal/infrastructure/mailer"
	"dealersign/internal/infrastructure/mongostore"
	"dealersign/internal/infrastructure/pdfclient"
	"dealersign/internal/infrastructure/queue"
	"dealersign/internal/infrastructure/redis"
	"dealersign/internal/infrastructure/repository"
	"dealersign/internal/server"
	"dealersign/internal/usecase"
	"dealersign/internal/worker"
)

func main() {
	fx.New(
		// Configuration
		config.Module,

		// Infrastructure
		logger.Module,
		database.Module,
		mongostore.Module,
		redis.Module,
		queue.Module,
		pdfclient.Module,
		mailer.Module,
		audit.Module,
		repository.Module,

		// Business Logic
		usecase.Module,

		// Background workers
		worker.Module,

		// Delivery
		deliveryhttp.Module,

		// Server
		server.Module,
	).Run()
}
