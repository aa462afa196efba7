package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirrobot01/photozip/internal/config"
)

// HealthStatus represents the status of various components
type HealthStatus struct {
	WebUI         bool `json:"web_ui"`
	PhotosPath    bool `json:"photos_path"`
	OverallStatus bool `json:"overall_status"`
}

func main() {
	var (
		configPath string
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "path to an optional JSON config file")
	flag.BoolVar(&debug, "debug", false, "enable debug mode for detailed output")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	status := HealthStatus{}

	// Create a context with timeout for all HTTP requests
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status.WebUI = checkWebUI(ctx, cfg.URLBase, cfg.Port)
	if info, err := os.Stat(cfg.PhotosPath); err == nil && info.IsDir() {
		status.PhotosPath = true
	}
	status.OverallStatus = status.WebUI && status.PhotosPath

	if debug {
		statusJSON, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(statusJSON))
	}

	if status.OverallStatus {
		os.Exit(0)
	}
	os.Exit(1)
}

func checkWebUI(ctx context.Context, baseUrl, port string) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("http://localhost:%s%s", port, baseUrl), nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
