package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"pillgenious/cmd"
	"pillgenious/internal/config"
	"pillgenious/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Configuration errors are reported again by the command that needs the config.
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting Pillgenious")

	cmd.Execute()

	log.Debug().Msg("Pillgenious shutdown")
	os.Exit(0)
}
