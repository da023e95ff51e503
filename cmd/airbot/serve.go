package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/airbot/internal/api/http"
	"github.com/i474232898/airbot/internal/observability"
	"github.com/i474232898/airbot/internal/scheduler"
)

func runServe(ctx context.Context) error {
	a, err := bootstrap(ctx, observability.NewMetrics())
	if err != nil {
		return err
	}

	// Scheduler that periodically refreshes and stores every report.
	sched := scheduler.New(a.cfg.FetchInterval, a.service, a.logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := newServer(a)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + a.cfg.Port)
	}()
	a.logger.Info("http server listening", "port", a.cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("http server stopped")
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", "error", err)
		return err
	}
	return nil
}

func newServer(a *app) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "airbot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "airbot",
			"sources": a.service.Sources(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, a.service)
	return app
}
