// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

// The intro-booker service books fair-rotation 1:1 intro meetings. It keeps
// per-programme rosters in NATS KV, synchronizes them from Microsoft Graph
// groups, and books meetings onto Google Calendar, driven by NATS request
// messages.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/introchat/intro-booking-service/internal/infrastructure/directory"
	"github.com/introchat/intro-booking-service/internal/infrastructure/messaging"
	"github.com/introchat/intro-booking-service/internal/infrastructure/store"
	"github.com/introchat/intro-booking-service/internal/logging"
	"github.com/introchat/intro-booking-service/internal/service"
	"github.com/introchat/intro-booking-service/pkg/utils"
)

func main() {
	// Load .env if present, for local development.
	_ = godotenv.Load()

	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	ctx := context.Background()

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		os.Exit(1)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	gracefulCloseWG := &sync.WaitGroup{}

	natsConn, err := setupNATS(env, gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err, "nats_url", env.NatsURL).Error("error connecting to NATS server")
		os.Exit(1)
	}

	kvStores, err := getKeyValueStores(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error opening roster key-value buckets")
		os.Exit(1)
	}
	rosterRepository := store.NewNatsRosterRepository(kvStores)

	directoryClient := directory.NewClient(directory.Config{
		TenantID:     env.Graph.TenantID,
		ClientID:     env.Graph.ClientID,
		ClientSecret: env.Graph.ClientSecret,
	})

	calendarClient, err := setupCalendar(ctx, env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up Google Calendar client")
		os.Exit(1)
	}

	messageBuilder := messaging.NewMessageBuilder(natsConn)

	rosterSyncService := service.NewRosterSyncService(rosterRepository, directoryClient, messageBuilder, env.GroupIDs)
	bookingService := service.NewBookingService(
		env.Service,
		rosterRepository,
		rosterRepository,
		calendarClient,
		messageBuilder,
		rosterSyncService,
	)

	if err := createNatsSubcriptions(ctx, bookingService, natsConn); err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		os.Exit(1)
	}

	server := httpServer(flags, bookingService, natsConn, gracefulCloseWG)

	slog.Info("intro booking service ready")
	<-done
	slog.Info("shutting down intro booking service")

	gracefulShutdown(server, natsConn, gracefulCloseWG)

	if err := otelShutdown(context.Background()); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
	}
}
