package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/echomap/pkg/config"
	"github.com/chrissnell/echomap/pkg/migrate"
	_ "modernc.org/sqlite"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	// Validate against defaults, but store only what the file sets.
	check := *configData
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration is invalid: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
		printConfigSummary(&check)
		if err := printPendingMigrations(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading migrations: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}
	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Creating SQLite database...\n")
	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

// printPendingMigrations lists the schema a new database would receive.
func printPendingMigrations() error {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return err
	}
	defer db.Close()
	pending, err := migrate.NewMigrator(db, config.Migrations(), nil).GetPendingMigrations()
	if err != nil {
		return err
	}
	fmt.Printf("\nSchema migrations (%d):\n", len(pending))
	for _, m := range pending {
		fmt.Printf("  %03d %s\n", m.Version, m.Name)
	}
	return nil
}

func printConfigSummary(c *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Dataset: %s (warm on start: %v, retries: %d)\n", c.Dataset.Path, c.Dataset.WarmOnStart, c.Dataset.WarmRetries)
	fmt.Printf("REST:    %s:%d (read %s, write %s)\n", c.REST.ListenAddr, c.REST.Port, c.REST.ReadTimeout, c.REST.WriteTimeout)
	fmt.Printf("Render:  %s, %d workers, %dx%d, Sv %v..%v dB\n",
		c.Render.OutputDir, c.Render.Workers, c.Render.Width, c.Render.Height, c.Render.DefaultVMin, c.Render.DefaultVMax)
	fmt.Printf("Query:   %d cached payloads\n", c.Query.CacheEntries)
}
