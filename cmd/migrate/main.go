package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/migrate"
)

// sourceDir is where create writes new files; the binary itself runs the embedded set.
const sourceDir = "pkg/migrate/migrations"

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|to|create|validate")
	dir := flag.String("dir", "", "migrations directory (default: migrations compiled into the binary)")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version YYYYMMDDHHMMSS for -cmd=to")
	flag.Parse()

	if err := run(*cmd, *dir, *name, *target); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func run(cmd, dir, name, target string) error {
	// create and validate work on files only.
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("-name is required")
		}
		if dir == "" {
			dir = sourceDir
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	if cfg.DB.IsSQLite() {
		if cmd != "up" {
			return fmt.Errorf("sqlite databases only support -cmd=up")
		}
		if err := models.AutoMigrate(client.DB()); err != nil {
			return fmt.Errorf("sqlite auto-migrate: %w", err)
		}
		logg.Info(ctx, "sqlite schema ready")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB, dir)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "schema up to date")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		logg.Info(ctx, "rolled back newest migration")
	case "to":
		if err := migrator.To(ctx, target); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", target), "schema moved to version")
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(statuses)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func printStatus(statuses []migrate.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, applied, s.Path)
	}
	_ = w.Flush()
}
