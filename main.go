package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Eursukkul/ticketgate/config"
	"github.com/Eursukkul/ticketgate/internal/consumer"
	"github.com/Eursukkul/ticketgate/internal/handler"
	"github.com/Eursukkul/ticketgate/internal/middleware"
	"github.com/Eursukkul/ticketgate/internal/repository"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/Eursukkul/ticketgate/pkg/database"
	"github.com/Eursukkul/ticketgate/pkg/logger"
	"github.com/Eursukkul/ticketgate/pkg/rabbitmq"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Mode: cfg.LogMode})

	db := database.NewPostgresDB(cfg.DSN())

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ consumer: %v", err)
	}
	defer mqConsumer.Close()

	// Repositories
	eventRepo := repository.NewEventRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	scannerRepo := repository.NewScannerRepository(db)

	// Services
	inventory := service.NewInventoryLedger(eventRepo)
	issuer := service.NewCredentialIssuer(cfg.QRSecret)
	eventSvc := service.NewEventService(eventRepo, publisher)
	ticketSvc := service.NewTicketService(ticketRepo, paymentRepo, inventory, issuer, publisher, log, cfg.ReservationTTL)
	reconciler := service.NewPaymentReconciler(paymentRepo, ticketRepo, inventory, issuer, publisher, log)
	scannerSvc := service.NewScannerGateway(scannerRepo, ticketRepo, issuer, publisher, log)

	// Gateway callbacks over AMQP
	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}
	consumer.NewPaymentCallbackConsumer(reconciler, log).Start(msgs)

	// Background expiry sweep for lapsed PENDING reservations
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ticketSvc.RunExpirySweeper(ctx, cfg.SweepInterval)
	go handleShutdown(cancel, log)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Infof("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "ticketgate"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler.NewEventHandler(eventSvc).RegisterRoutes(e)
	handler.NewTicketHandler(ticketSvc).RegisterRoutes(e)
	handler.NewPaymentHandler(reconciler).RegisterRoutes(e)
	handler.NewScannerHandler(scannerSvc).RegisterRoutes(e)

	log.Infof("ticketgate starting on :%s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func handleShutdown(cancel context.CancelFunc, log logger.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Infof("shutdown signal received, stopping background tasks")
	cancel()
}
