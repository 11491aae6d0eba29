// Binary report renders the discovery state into offline review files:
// a Markdown report plus CSV exports of the pattern registry and the
// recent matchup window. It reads the live database and writes nothing
// back, so it is safe to run against a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/config"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/reporting"
	pgstore "github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (overrides config)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	size := flag.Int("size", 0, "Leaderboard rows (defaults to the configured leaderboard size)")
	matchupCycles := flag.Int64("matchup-cycles", reporting.DefaultMatchupCycles, "Trailing cycles of matchups to include")
	flag.Parse()

	ctx := context.Background()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}

	// The report reads the registry tables only, so PostgreSQL is the
	// sole connection it needs.
	if cfg.Storage.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required (or POSTGRES_DSN, or storage.postgres_dsn in the config)")
		os.Exit(1)
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	generator := reporting.NewGenerator(
		pgstore.NewTrialStore(pool),
		pgstore.NewPatternStore(pool),
		pgstore.NewMatchupStore(pool),
		pgstore.NewCycleStateStore(pool),
	).WithMatchupCycles(*matchupCycles)

	if *size > 0 {
		generator = generator.WithLeaderboardSize(*size)
	} else if cfg.Web.LeaderboardSize > 0 {
		generator = generator.WithLeaderboardSize(cfg.Web.LeaderboardSize)
	}

	report, err := generator.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := writeFiles(*outputDir, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report files: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Discovery report generated successfully:")
	fmt.Printf("  - %s/REPORT.md\n", *outputDir)
	fmt.Printf("  - %s/patterns.csv\n", *outputDir)
	fmt.Printf("  - %s/matchups.csv\n", *outputDir)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// writeFiles renders the report and writes the output files:
// - REPORT.md
// - patterns.csv
// - matchups.csv
func writeFiles(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	reportMD := reporting.RenderMarkdown(report)
	reportPath := filepath.Join(dir, "REPORT.md")
	if err := os.WriteFile(reportPath, []byte(reportMD), 0644); err != nil {
		return fmt.Errorf("write REPORT.md: %w", err)
	}

	patternsCSV := reporting.RenderRegistryCSV(report.Registry)
	patternsPath := filepath.Join(dir, "patterns.csv")
	if err := os.WriteFile(patternsPath, []byte(patternsCSV), 0644); err != nil {
		return fmt.Errorf("write patterns.csv: %w", err)
	}

	matchupsCSV := reporting.RenderMatchupsCSV(report.Matchups)
	matchupsPath := filepath.Join(dir, "matchups.csv")
	if err := os.WriteFile(matchupsPath, []byte(matchupsCSV), 0644); err != nil {
		return fmt.Errorf("write matchups.csv: %w", err)
	}

	return nil
}
