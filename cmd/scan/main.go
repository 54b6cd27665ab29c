package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"comicshelf/internal/reader"
	"comicshelf/internal/scanner"
	"comicshelf/internal/settings"
	"comicshelf/pkg/database"
	"comicshelf/pkg/utils"
)

func main() {
	var (
		root    = flag.String("root", "", "library root (default: saved setting > env > ./comics)")
		timeout = flag.Duration("timeout", 10*time.Minute, "abort the scan after this long")
	)
	flag.Parse()

	utils.LoadDotEnv()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	settingsRepo := settings.NewRepo(db)

	target := *root
	if target == "" {
		resolved, source, err := settings.ResolveLibraryRoot(ctx, settingsRepo, os.LookupEnv)
		if err != nil {
			log.Fatalf("resolve library root: %v", err)
		}
		log.Printf("using %s library root %s", source, resolved)
		target = resolved
	}

	rd := reader.New()
	log.Printf("backends: %v", rd.Capabilities())

	summary, err := scanner.New(db, rd, settingsRepo).Run(ctx, target)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}
	log.Printf("scan complete: %d titles, %d volumes in %dms", summary.Titles, summary.Volumes, summary.TookMS)
}
