// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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

	log.Println("starting eye-wall controller daemon")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunEyeController(*dryRun); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
