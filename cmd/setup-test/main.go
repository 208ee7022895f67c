package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/glassgauge/gauge-backend/internal/dto"
)

// Creates a watch session against a running server and prints the feed
// credentials the camera simulator needs.
func main() {
	server := os.Getenv("SERVER_URL")
	if server == "" {
		server = "http://localhost:8080"
	}

	body, err := json.Marshal(map[string]any{
		"facing_mode":       "environment",
		"detection_enabled": true,
	})
	if err != nil {
		log.Fatal("marshal request:", err)
	}

	resp, err := http.Post(server+"/v1/watch", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal("create session:", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		log.Fatalf("create session: status=%d body=%s", resp.StatusCode, data)
	}

	var session dto.WatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		log.Fatal("decode response:", err)
	}

	fmt.Println("Session ID:", session.SessionID)
	fmt.Println("Permission:", session.Permission)
	fmt.Println("Ingest token:", session.IngestToken)
	fmt.Println("")
	fmt.Println("Feed it frames from the simulator:")
	fmt.Printf("  cd camsim && SESSION_ID=%s INGEST_TOKEN=%s go run .\n", session.SessionID, session.IngestToken)
}
