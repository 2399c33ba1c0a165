// Файл: main.go

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"custody-system/internal/repositories"
	"custody-system/internal/services"
	"custody-system/migrations"
	"custody-system/pkg/config"
	"custody-system/pkg/database/postgresql"
	applogger "custody-system/pkg/logger"
)

func main() {
	logger := applogger.NewLogger()
	defer logger.Sync()

	cfg := config.New()

	// Подключение к хранилищам.
	dbConn := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbConn.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}

	// Миграции схемы (встроенные goose-скрипты).
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("goose: неподдерживаемый диалект", zap.Error(err))
	}
	migrationDB := stdlib.OpenDBFromPool(dbConn)
	if err := goose.Up(migrationDB, "."); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("не удалось закрыть соединение мигратора", zap.Error(err))
	}

	v := validator.New()

	// Репозитории.
	equipmentRepo := repositories.NewEquipmentRepository(dbConn, logger)
	requestRepo := repositories.NewRequestRepository(dbConn, logger)
	poolRepo := repositories.NewPoolRepository(dbConn, logger)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	// Сервисы ядра вызываются внешним слоем (транспортом) как библиотека.
	// Демон поднимает только фоновый пересчёт агрегатов пулов.
	numbering := services.NewRequestNumberService(cacheRepo, logger, cfg.Numbering.Prefix, cfg.Numbering.CounterTTL)
	poolService := services.NewPoolService(dbConn, poolRepo, equipmentRepo, requestRepo, cacheRepo, numbering, v, logger)

	logger.Info("🚀 Ядро учёта оборудования запущено")

	// Единственная фоновая работа: периодический, идемпотентный пересчёт
	// счётчиков пулов для витрины. На решения о выдаче он не влияет.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Custody.PoolRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := poolService.RefreshAggregates(ctx); err != nil {
				logger.Error("ошибка пересчёта счётчиков пулов", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("получен сигнал остановки, завершение работы")
			os.Exit(0)
		}
	}
}
