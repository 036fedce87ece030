package main

import (
	approuters "Memoria/internal/app_routers"
	"Memoria/internal/configuration"
	"flag"
	"log"
)

func main() {
	configPath := flag.String("config", "config/relay.json", "path to the relay config file")
	flag.Parse()

	container, err := configuration.BuildContainer(*configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
