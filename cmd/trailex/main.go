package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/trailex/api"
	"github.com/Aidin1998/trailex/internal/bookkeeper"
	"github.com/Aidin1998/trailex/internal/config"
	"github.com/Aidin1998/trailex/internal/database"
	"github.com/Aidin1998/trailex/internal/engine"
	"github.com/Aidin1998/trailex/internal/engine/model"
	"github.com/Aidin1998/trailex/internal/engine/repository"
	"github.com/Aidin1998/trailex/internal/events"
	"github.com/Aidin1998/trailex/internal/venue"
	"github.com/Aidin1998/trailex/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	devVenue := flag.Bool("dev-venue", false, "register a simulated WETH-USDC venue")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	repo, err := buildRepository(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create order repository", zap.Error(err))
	}

	assets := bookkeeper.NewInMemoryService(zapLogger)
	tokens := bookkeeper.NewInMemoryTokenLedger()

	var publisher events.Publisher
	var kafkaPub *events.KafkaPublisher
	if cfg.Kafka.Enabled {
		kafkaPub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, nil, zapLogger)
		publisher = kafkaPub
	} else {
		publisher = events.NewRecorder()
	}

	eng := engine.New(zapLogger, repo, assets, tokens, publisher, engine.Config{
		BatchSize:    cfg.Engine.BatchSize,
		PoolCapacity: cfg.Engine.PoolCapacity,
	})

	if *devVenue {
		registerDevVenue(ctx, zapLogger, eng, assets)
	}

	if err := eng.RestoreActiveOrders(ctx); err != nil {
		zapLogger.Fatal("Failed to restore active orders", zap.Error(err))
	}

	apiServer := api.NewServer(zapLogger, eng)
	go func() {
		if err := apiServer.Start(cfg.Server.Addr); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			zapLogger.Error("Failed to close event publisher", zap.Error(err))
		}
	}

	zapLogger.Info("Server exited properly")
}

func buildRepository(cfg *config.Config, zapLogger *zap.Logger) (model.Repository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := database.NewPostgresDB(cfg.Database.DSN, database.PoolSettings{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetimeDuration(),
		})
		if err != nil {
			return nil, err
		}
		return repository.NewGormRepository(db, zapLogger)
	case "sqlite":
		db, err := database.NewSQLiteDB(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return repository.NewGormRepository(db, zapLogger)
	default:
		return repository.NewInMemoryRepository(), nil
	}
}

// registerDevVenue wires a simulated constant-product venue so the service
// is usable without external market infrastructure. The engine and venue
// custody accounts are seeded with enough inventory to settle swaps.
func registerDevVenue(ctx context.Context, zapLogger *zap.Logger, eng *engine.Engine, assets *bookkeeper.InMemoryService) {
	v := venue.NewSimulated("WETH-USDC", "WETH", "USDC",
		decimal.NewFromInt(1_000_000), decimal.NewFromInt(1_000_000), zapLogger)
	eng.RegisterVenue(v)
	if err := eng.SetTrustedVenue(v.Key(), true); err != nil {
		zapLogger.Fatal("Failed to trust dev venue", zap.Error(err))
	}
	v.SetPriceListener(eng)

	assets.Deposit(ctx, v.Account(), "WETH", decimal.NewFromInt(1_000_000))
	assets.Deposit(ctx, v.Account(), "USDC", decimal.NewFromInt(1_000_000))
	zapLogger.Info("registered simulated dev venue", zap.String("venue", v.Key()))
}
