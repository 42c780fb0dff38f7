// catalog-seed loads the global care-act catalog (NGAP nursing acts and
// the common orthopedic tariffs) into the database. Global entries have
// no office_id and are visible to every office alongside its own rows.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/catalog-seed
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/models"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

type seedAct struct {
	family      models.ActFamily
	code        string
	label       string
	unitPrice   int64 // cents
	coefficient string
	rate        int64 // percent, orthopedic only
}

// Unit prices follow the public NGAP tariff for nurses; orthopedic
// entries carry the coverage rate of the standard insurer agreement.
var seedActs = []seedAct{
	{models.ActFamilyCare, "AMI", "Acte medico-infirmier", 315, "1", 0},
	{models.ActFamilyCare, "AIS", "Acte infirmier de soins", 265, "1", 0},
	{models.ActFamilyCare, "AMI1.5", "Acte medico-infirmier majore", 315, "1.5", 0},
	{models.ActFamilyCare, "AMP", "Acte medico-podologique", 315, "1", 0},
	{models.ActFamilyCare, "PANSLOURD", "Pansement lourd et complexe", 315, "4", 0},
	{models.ActFamilyCare, "PERF", "Perfusion courte", 315, "9", 0},
	{models.ActFamilyOrthopedic, "SEMELLE", "Paire de semelles orthopediques", 12000, "1", 100},
	{models.ActFamilyOrthopedic, "CHAUSSURE", "Chaussures orthopediques sur mesure", 65000, "1", 65},
	{models.ActFamilyOrthopedic, "ORTHESE", "Orthese plantaire", 28600, "1", 60},
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	created, skipped := 0, 0
	for _, entry := range seedActs {
		var count int64
		err := db.WithContext(ctx).Model(&models.CatalogAct{}).
			Where("office_id IS NULL AND family = ? AND code = ?", entry.family, entry.code).
			Count(&count).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to check %s: %v\n", entry.code, err)
			os.Exit(1)
		}
		if count > 0 {
			skipped++
			continue
		}

		coefficient, err := decimal.NewFromString(entry.coefficient)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad coefficient for %s: %v\n", entry.code, err)
			os.Exit(1)
		}

		act := models.CatalogAct{
			Family:      entry.family,
			Code:        entry.code,
			Label:       entry.label,
			UnitPrice:   decimal.NewFromInt(entry.unitPrice),
			Coefficient: coefficient,
			Rate:        decimal.NewFromInt(entry.rate),
			IsActive:    utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&act).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", entry.code, err)
			os.Exit(1)
		}
		created++
	}

	fmt.Printf("catalog seed done: %d created, %d skipped\n", created, skipped)
}
