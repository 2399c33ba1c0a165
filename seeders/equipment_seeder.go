package seeders

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type equipmentSeed struct {
	Name         string
	Category     string
	Model        string
	SerialNumber string
	Manufacturer string
	PurchaseDate time.Time
	Cost         float64
	Condition    string
	Location     string
}

var demoEquipment = []equipmentSeed{
	{"Ноутбук разработчика", "laptop", "ThinkPad T14 Gen 4", "SN-TP-0001", "Lenovo", date(2024, 3, 12), 1450, "excellent", "Склад, стеллаж A1"},
	{"Ноутбук разработчика", "laptop", "ThinkPad T14 Gen 4", "SN-TP-0002", "Lenovo", date(2024, 3, 12), 1450, "excellent", "Склад, стеллаж A1"},
	{"Ноутбук разработчика", "laptop", "ThinkPad T14 Gen 4", "SN-TP-0003", "Lenovo", date(2024, 5, 2), 1390, "good", "Склад, стеллаж A1"},
	{"Монитор офисный", "monitor", "Dell U2723QE", "SN-DL-0101", "Dell", date(2023, 11, 20), 620, "good", "Склад, стеллаж B2"},
	{"Монитор офисный", "monitor", "Dell U2723QE", "SN-DL-0102", "Dell", date(2023, 11, 20), 620, "good", "Склад, стеллаж B2"},
	{"Принтер этажный", "printer", "LaserJet Pro M404", "SN-HP-0201", "HP", date(2022, 6, 1), 380, "fair", "3 этаж, серверная"},
	{"Смартфон дежурного", "phone", "Galaxy A54", "SN-SG-0301", "Samsung", date(2024, 9, 15), 410, "new", "Склад, сейф"},
	{"Коммутатор доступа", "network_device", "Catalyst 1300", "SN-CS-0401", "Cisco", date(2023, 2, 8), 980, "good", "Серверная, стойка 2"},
}

// seedEquipment идемпотентен: существующие серийные номера пропускаются.
func seedEquipment(ctx context.Context, db *pgxpool.Pool) error {
	const query = `
		INSERT INTO equipments (name, category, model, serial_number, manufacturer, purchase_date, cost, condition, status, location, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'available', $9, 0)
		ON CONFLICT (serial_number) DO NOTHING
	`

	for _, e := range demoEquipment {
		if _, err := db.Exec(ctx, query,
			e.Name, e.Category, e.Model, e.SerialNumber, e.Manufacturer,
			e.PurchaseDate, e.Cost, e.Condition, e.Location,
		); err != nil {
			return err
		}
	}

	log.Printf("   ... оборудование: %d позиций обработано", len(demoEquipment))
	return nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
