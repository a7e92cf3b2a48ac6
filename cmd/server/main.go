package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	addr := getEnv("SERVER_ADDR", "127.0.0.1:8080")

	appDir := os.Getenv("DATA_DIR")
	if appDir == "" {
		dir, err := database.GetAppDir()
		if err != nil {
			return err
		}
		appDir = dir
	}

	appConfig, err := database.LoadConfig(appDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	geodesic := getEnv("GEODESIC", appConfig.Geodesic)

	srv, err := server.New(server.Config{
		Addr:           addr,
		DBPath:         appConfig.DatabasePath,
		Geodesic:       geodesic,
		Workers:        getEnvInt("SOLVER_WORKERS", 0),
		MaxUploadMB:    getEnvInt("MAX_UPLOAD_MB", 10),
		MaxRows:        getEnvInt("MAX_ROWS", 0),
		GeocodeMissing: getEnvBool("GEOCODE_MISSING", false),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	log.Printf("Using database %s, geodesic=%s", appConfig.DatabasePath, geodesic)

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if getEnvBool("OPEN_BROWSER", true) {
		go func() {
			time.Sleep(500 * time.Millisecond)
			url := fmt.Sprintf("http://%s", actualAddr)
			if err := openBrowser(url); err != nil {
				log.Printf("Could not open browser: %v", err)
			} else {
				log.Printf("Opened browser at %s", url)
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.Printf("Received signal %v, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Printf("Ignoring %s=%q: not a non-negative integer", key, value)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Ignoring %s=%q: not a boolean", key, value)
		return defaultValue
	}
	return b
}

func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}
