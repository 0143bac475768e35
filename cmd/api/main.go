package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/nfce-emissor/docs"
	"github.com/jhoicas/nfce-emissor/internal/bootstrap"
	httpRouter "github.com/jhoicas/nfce-emissor/internal/interfaces/http"
	"github.com/jhoicas/nfce-emissor/pkg/config"
	"github.com/jhoicas/nfce-emissor/pkg/logger"
)

// @title        NFC-e Emissor API
// @version      1.0
// @description  Emisión de NFC-e (modelo 65) a partir de ventas del PDV.
// @BasePath     /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	fiscal, err := bootstrap.NewFiscal(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar módulo fiscal")
	}
	defer fiscal.Close()

	// Barrido periódico de documentos que quedaron en PROCESSING
	if cfg.Fiscal.ReconcileInterval > 0 {
		go fiscal.Reconciler.Run(ctx, cfg.Fiscal.ReconcileInterval)
		log.Info().Dur("interval", cfg.Fiscal.ReconcileInterval).Msg("reconciliação periódica habilitada")
	}

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		// La autorización síncrona puede tardar hasta FISCAL_SUBMIT_TIMEOUT.
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.Fiscal.SubmitTimeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "NFC-e Emissor API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Emitter:   fiscal.Emitter,
		Config:    fiscal.Config,
		Documents: fiscal.Documents,
		Status:    fiscal.Status,
		Sweeper:   fiscal.Reconciler,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
