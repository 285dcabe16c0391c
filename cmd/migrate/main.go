package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/samirrijal/pingsphere/internal/adapters/postgres"
	"github.com/samirrijal/pingsphere/internal/pkg/config"
	"github.com/samirrijal/pingsphere/migrations"
)

const usage = "usage: migrate <up|down|status>"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}
	cmd := os.Args[1]
	if cmd != "up" && cmd != "down" && cmd != "status" {
		log.Fatalf("unknown command: %s\n%s", cmd, usage)
	}

	cfg, err := config.Load("pingsphere-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if cmd == "status" {
		states, err := postgres.MigrationStatus(ctx, db, migrations.FS)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		for _, s := range states {
			mark := "pending"
			if s.Applied {
				mark = "applied"
			}
			fmt.Printf("%-8s %s\n", mark, s.Version)
		}
		return
	}

	versions, err := postgres.Migrate(ctx, db, migrations.FS, cmd)
	for _, v := range versions {
		fmt.Printf("OK  %s %s\n", cmd, v)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", cmd, err)
	}

	switch {
	case len(versions) == 0:
		log.Println("nothing to do")
	case cmd == "up":
		log.Printf("%d migration(s) applied", len(versions))
	default:
		log.Printf("%d migration(s) reverted", len(versions))
	}
}
