package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedCatalog наполняет демонстрационный реестр оборудования.
func SeedCatalog(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения реестра оборудования...")

	if err := seedEquipment(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Оборудования (Equipments): %v", err)
	}
	log.Println("✅ Наполнение реестра завершено!")
}

// SeedPools создаёт демонстрационные пулы выдачи.
func SeedPools(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения пулов выдачи...")

	if err := seedAllocationPools(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Пулов (AllocationPools): %v", err)
	}
	log.Println("✅ Наполнение пулов завершено!")
}
