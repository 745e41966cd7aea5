package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/andresuchdata/bakecast/internal/app"
	"github.com/andresuchdata/bakecast/internal/config"
	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/repository/postgres"
	"github.com/andresuchdata/bakecast/internal/service"
	"github.com/andresuchdata/bakecast/pkg/logger"
	"github.com/urfave/cli/v2"
)

const appMetadataKey = "app"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func storeFlag(required bool) *cli.Int64Flag {
	return &cli.Int64Flag{Name: "store", Usage: "Store ID", Required: required}
}

func dateFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{Name: "date", Usage: usage + " (YYYY-MM-DD)", Required: true}
}

// openDB prefers an explicit --db-url over the discrete DB_* settings.
func openDB(c *cli.Context, cfg *config.Config) (*postgres.DB, error) {
	if url := c.String("db-url"); url != "" {
		return postgres.Open("pgx", url, cfg.Database.MaxConns)
	}
	return postgres.NewDB(&cfg.Database)
}

func initApp(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	db, err := openDB(c, cfg)
	if err != nil {
		return err
	}

	c.App.Metadata[appMetadataKey] = app.New(cfg, db)
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.App.Metadata[appMetadataKey].(*app.App); ok && a != nil {
		return a.Close()
	}
	return nil
}

func fromContext(c *cli.Context) *app.App {
	return c.App.Metadata[appMetadataKey].(*app.App)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDateFlag(c *cli.Context) (time.Time, error) {
	return domain.ParseDate("date", c.String("date"))
}

func main() {
	cliApp := &cli.App{
		Name:     "forecastctl",
		Usage:    "Operate the bakery production forecast",
		Flags:    []cli.Flag{newDBURLFlag()},
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply the embedded schema migrations",
				Action: func(c *cli.Context) error {
					cfg := config.Load()
					db, err := openDB(c, cfg)
					if err != nil {
						return err
					}
					defer db.Close()
					return postgres.Migrate(c.Context, db)
				},
			},
			{
				Name:  "generate",
				Usage: "Generate forecasts for a store and target date",
				Flags: []cli.Flag{
					storeFlag(true),
					dateFlag("Target date"),
					&cli.StringFlag{Name: "expectation", Usage: "busy, normal, slow or unsure"},
					&cli.BoolFlag{Name: "keep-approved", Usage: "Leave products already approved for the date untouched"},
				},
				Before: initApp,
				After:  closeApp,
				Action: func(c *cli.Context) error {
					date, err := parseDateFlag(c)
					if err != nil {
						return err
					}
					result, err := fromContext(c).Forecast.Generate(c.Context, service.GenerateRequest{
						StoreID:      c.Int64("store"),
						TargetDate:   date,
						Expectation:  c.String("expectation"),
						KeepApproved: c.Bool("keep-approved"),
					})
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:  "archive",
				Usage: "List production plans archived by approvals for a date",
				Flags: []cli.Flag{
					storeFlag(true),
					dateFlag("Target date"),
				},
				Before: initApp,
				After:  closeApp,
				Action: func(c *cli.Context) error {
					date, err := parseDateFlag(c)
					if err != nil {
						return err
					}
					objects, err := fromContext(c).Forecast.ArchivedPlans(c.Context, c.Int64("store"), date)
					if err != nil {
						return err
					}
					return printJSON(objects)
				},
			},
			{
				Name:  "learn",
				Usage: "Recompute learning states from recent approved forecasts",
				Flags: []cli.Flag{
					storeFlag(true),
					&cli.IntFlag{Name: "lookback", Usage: "Days of outcomes to learn from", Value: service.DefaultLookbackDays},
				},
				Before: initApp,
				After:  closeApp,
				Action: func(c *cli.Context) error {
					result, err := fromContext(c).Learning.UpdateLearning(c.Context, c.Int64("store"), c.Int("lookback"))
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:  "accuracy",
				Usage: "Compare planned against actual production for a date",
				Flags: []cli.Flag{
					storeFlag(true),
					dateFlag("Production date"),
				},
				Before: initApp,
				After:  closeApp,
				Action: func(c *cli.Context) error {
					date, err := parseDateFlag(c)
					if err != nil {
						return err
					}
					result, err := fromContext(c).Accuracy.ComputeAccuracy(c.Context, c.Int64("store"), date)
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:  "nightly",
				Usage: "Run accuracy, learning and tomorrow's forecast for every active store",
				Flags: []cli.Flag{
					&cli.Int64SliceFlag{Name: "store", Usage: "Limit the run to these store IDs"},
				},
				Before: initApp,
				After:  closeApp,
				Action: func(c *cli.Context) error {
					summary, runErr := fromContext(c).Nightly().Run(c.Context, c.Int64Slice("store"))
					if summary != nil {
						if err := printJSON(summary); err != nil {
							return err
						}
					}
					if runErr != nil {
						return cli.Exit(fmt.Sprintf("nightly run finished with failures: %v", runErr), 1)
					}
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("forecastctl failed")
	}
}
