package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/Frozenguru/stk/config"
	"github.com/Frozenguru/stk/handles"
	"github.com/Frozenguru/stk/mpesa"
)

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	cfg := config.Load()

	// No client timeout: a hung gateway call blocks only the request
	// that issued it.
	gateway := mpesa.NewClient(cfg, &http.Client{}, zlog)
	handler := handles.New(gateway, zlog)

	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Post("/stkpush", handler.StkPush)
	app.Post("/callback", handler.Callback)
	app.Get("/health", handler.Health)

	metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metrics(c.Context())
		return nil
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zlog.Info("Shutting down")
		if err := app.Shutdown(); err != nil {
			zlog.Error("Shutdown error", zap.Error(err))
		}
	}()

	zlog.Info("Starting STK relay", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("Failed to start server", zap.Error(err))
	}
}
