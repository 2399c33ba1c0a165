package main

import (
	"flag"
	"log"

	"custody-system/pkg/config"
	"custody-system/pkg/database/postgresql"
	"custody-system/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runCatalog := flag.Bool("catalog", false, "Наполнить демонстрационный реестр оборудования")
	runPools := flag.Bool("pools", false, "Создать демонстрационные пулы выдачи")
	runAll := flag.Bool("all", false, "Запустить все сидеры (эквивалентно -catalog -pools)")

	flag.Parse()

	if !*runCatalog && !*runPools && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -catalog")
		log.Println("  go run ./seeders/cmd/seed -all")
		log.Println("======================================================")
		return
	}

	cfg := config.New()
	log.Println("📦 Используется DSN:", cfg.Postgres.DSN)
	dbPool := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbPool.Close()

	log.Println("======================================================")

	if *runAll || *runCatalog {
		seeders.SeedCatalog(dbPool)
		log.Println("======================================================")
	}

	if *runAll || *runPools {
		// Пулы ссылаются на модели из реестра, порядок важен.
		seeders.SeedPools(dbPool)
		log.Println("======================================================")
	}

	log.Println("🎉 Сидирование завершено.")
}
