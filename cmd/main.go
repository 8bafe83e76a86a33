package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/victornm/docquiz/internal/config"
	"github.com/victornm/docquiz/internal/server"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
}

func loadConfig() (server.Config, error) {
	// a missing .env is fine, the environment may be set already
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return server.Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := server.DefaultConfig()

	// without CONFIG_PATH the defaults and the environment are used
	if err := config.Load(os.Getenv("CONFIG_PATH"), &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
