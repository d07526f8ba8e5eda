// Copyright (c) 2025 Erik Kassubek
//
// File: main.go
// Brief: Entry point: wires config, storage, engine and the HTTP surface
//
// Author: Erik Kassubek
// Created: 2025-07-01
//
// License: BSD-3-Clause

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"causeway/config"
	"causeway/engine"
	"causeway/httpapi"
	"causeway/logging"
	"causeway/queue"
	"causeway/service"
	"causeway/storage"

	"github.com/spf13/cobra"
)

var log = logging.Component("main")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the single root "causeway" command that boots the
// analysis engine: load config, connect storage, restore the causal
// graph, start the drain loop, then serve the HTTP surface of spec §6
// until an interrupt or terminate signal arrives.
//
// Returns:
//   - *cobra.Command: the configured root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "causeway",
		Short: "Causal debugger analysis service for distributed and concurrent applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func run(parentCtx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to open storage backend")
		return err
	}
	defer closeBackend()

	svc := service.New(backend, 10*time.Second)
	if err := svc.Restore(ctx); err != nil {
		log.WithError(err).Error("failed to restore analysis service state")
		return err
	}

	q := queue.New(cfg.Engine.BufferSize)
	eng := engine.New(q, svc, cfg.Engine.BatchSize, time.Duration(cfg.Engine.FlushIntervalMs)*time.Millisecond)

	engCtx, stopEngine := context.WithCancel(ctx)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(engCtx)
	}()

	router := httpapi.NewRouter(svc, q)
	addr := cfg.Server.Host + ":" + portString(cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: router}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("starting http server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("http server failed")
		}
		stopEngine()
		<-engineDone
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown did not complete cleanly")
	}

	stopEngine()
	<-engineDone
	log.Info("shutdown complete")
	return nil
}

// openBackend constructs the storage.Backend named by
// cfg.Storage.Backend (spec §6.4 storage.backend).
//
// Returns:
//   - storage.Backend: the opened backend
//   - func(): a cleanup hook to invoke on shutdown
//   - error: non-nil if the backend could not be opened
func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pg, err := storage.NewPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}

func portString(port int) string {
	if port <= 0 {
		return "8080"
	}
	return strconv.Itoa(port)
}
