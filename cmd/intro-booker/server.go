// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/introchat/intro-booking-service/internal/logging"
	"github.com/introchat/intro-booking-service/internal/service"
)

const gracefulShutdownSeconds = 25

// httpServer starts the health endpoint listener.
func httpServer(flags flags, svc service.Service, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !svc.ServiceReady() || natsConn == nil || !natsConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%s", flags.Port)
	if flags.Bind != "*" {
		addr = fmt.Sprintf("%s:%s", flags.Bind, flags.Port)
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Info("http health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.With(logging.ErrKey, err).Error("http health server error")
		}
		gracefulCloseWG.Done()
	}()

	return server
}

// gracefulShutdown drains the NATS subscriptions and stops the health server,
// bounded by a shutdown timeout.
func gracefulShutdown(server *http.Server, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup) {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer cancel()

	// Draining lets in-flight handlers reply before the connection closes.
	if natsConn != nil && !natsConn.IsClosed() {
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down http health server")
	}

	done := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("graceful shutdown timed out")
	}
}
