package main

import (
	"context"
	"flag"
	"log"

	"subcue/internal/config"
	"subcue/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to the subcue config file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("subcued: %v", err)
	}
}
