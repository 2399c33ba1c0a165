package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

type poolSeed struct {
	Name          string
	Category      string
	Model         string
	TotalQuantity int
	Designations  []string
}

var demoPools = []poolSeed{
	{"Ноутбуки разработки", "laptop", "ThinkPad T14 Gen 4", 3, []string{"developer", "team_lead", "admin"}},
	{"Мониторы офисные", "monitor", "Dell U2723QE", 2, []string{"developer", "team_lead", "accountant", "admin"}},
}

// seedAllocationPools идемпотентен: существующие пулы обновляются по имени.
func seedAllocationPools(ctx context.Context, db *pgxpool.Pool) error {
	const query = `
		INSERT INTO allocation_pools (name, category, model, total_quantity, authorized_designations)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET total_quantity = EXCLUDED.total_quantity,
		    authorized_designations = EXCLUDED.authorized_designations,
		    updated_at = CURRENT_TIMESTAMP
	`

	for _, p := range demoPools {
		if _, err := db.Exec(ctx, query, p.Name, p.Category, p.Model, p.TotalQuantity, p.Designations); err != nil {
			return err
		}
	}

	log.Printf("   ... пулы: %d позиций обработано", len(demoPools))
	return nil
}
