package main

import (
	"time"

	"lod-engine/src/utils"

	"github.com/spf13/cobra"
)

// -----------------------------------------------------------------------------

func newSeedCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with synthetic minute bars for every configured series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(days)
		},
	}
	cmd.Flags().IntVar(&days, "days", utils.DefaultSeedDays, "days of history to generate")
	return cmd
}

// -----------------------------------------------------------------------------

func seed(days int) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := setupDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	to := time.Now().Truncate(time.Minute)
	from := to.AddDate(0, 0, -days)

	for _, sc := range cfg.Series {
		if err := db.RegisterSeries(sc.ID, sc.Kind); err != nil {
			return err
		}
		expected := utils.CalculateMaxDataPoints(days, sc.Symbol == "")
		appLogger.Info("Seeding %s: up to %d bars from %s", sc.ID, expected, from.Format(time.RFC3339))

		gen := utils.NewSeedGenerator(sc.Symbol, from.UnixNano())
		bars := gen.Generate(from, to)
		if err := db.SaveBarsBulk(sc.ID, bars); err != nil {
			return err
		}
		appLogger.Info("Seeded %d bars for %s", len(bars), sc.ID)
	}
	return nil
}
