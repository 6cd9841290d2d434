package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/eye_wall/internal/app"
	"github.com/relabs-tech/eye_wall/internal/config"
)

func main() {
	configPath := flag.String("config", "./eyewall_config.txt", "path to configuration file")
	dryRun := flag.Bool("dry-run", false, "run against an in-memory bus instead of hardware")
	flag.Parse()

	log.Println("centering all eyes")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCenter(*dryRun); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
