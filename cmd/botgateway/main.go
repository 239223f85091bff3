package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/pkg/db"
	"campaignhub-botgateway/pkg/gen"
	"campaignhub-botgateway/pkg/hashistack/secretmanager"
	"campaignhub-botgateway/pkg/health"
	"campaignhub-botgateway/pkg/httpapi"
	"campaignhub-botgateway/pkg/logger"
	"campaignhub-botgateway/pkg/otelcol"
	"campaignhub-botgateway/pkg/postfetch"
	"campaignhub-botgateway/pkg/redis"
	"campaignhub-botgateway/pkg/server"
	"campaignhub-botgateway/pkg/task"
	"campaignhub-botgateway/pkg/telegram"
	"campaignhub-botgateway/services/bootstrap"
	"campaignhub-botgateway/services/campaign"
	"campaignhub-botgateway/services/chat"
	"campaignhub-botgateway/services/command"
	"campaignhub-botgateway/services/deliverable"
	"campaignhub-botgateway/services/kol"
	"campaignhub-botgateway/services/notify"
	"campaignhub-botgateway/services/organization"
	"campaignhub-botgateway/services/webhook"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		task.Client,
		gen.Module,
		health.Module,
		server.ProvideHTTPServer,
		// Shared middleware must be installed before any route.
		httpapi.Module,
		telegram.Module,
		postfetch.Module,
		bootstrap.Module,
		organization.Module,
		chat.Module,
		kol.Module,
		campaign.Module,
		notify.Module,
		deliverable.Module,
		command.Module,
		webhook.Module,
		fxLogger,
	}

	if os.Getenv("VAULT_ADDR") != "" {
		opts = append(opts, secretmanager.Module)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
