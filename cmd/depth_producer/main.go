package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/eye_wall/internal/app"
	"github.com/relabs-tech/eye_wall/internal/config"
)

func main() {
	configPath := flag.String("config", "./eyewall_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting eye-wall depth producer (depth unit -> MQTT)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDepthProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
