package main

import (
	"log"
	"net/http"
	"os"

	"safedrive/internal/config"
	"safedrive/internal/logger"
	"safedrive/internal/middleware"
	"safedrive/internal/routes"
	"safedrive/internal/stream"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	// Connect to the database
	config.InitDB()

	// Optional Kafka fan-out of created reports
	if _, err := stream.Init(); err != nil {
		log.Fatalf("stream init failed: %v", err)
	}
	defer stream.Close()

	// Setup Gin router
	r := routes.SetupRouter()

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	addr := ":" + getPort()
	log.Printf("🚀 Report server running at %s", addr)
	log.Fatal(http.ListenAndServe("0.0.0.0"+addr, handler))
}

func getPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}
