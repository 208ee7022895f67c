package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log"
	"math"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

const (
	frameWidth  = 320
	frameHeight = 240
)

func main() {
	sessionID := os.Getenv("SESSION_ID")
	if sessionID == "" {
		log.Fatal("SESSION_ID env required")
	}
	token := os.Getenv("INGEST_TOKEN")
	if token == "" {
		log.Fatal("INGEST_TOKEN env required")
	}

	server := os.Getenv("SERVER_URL")
	if server == "" {
		server = "ws://localhost:8080"
	}

	fps := 5
	if raw := os.Getenv("FPS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			log.Fatal("FPS must be a positive integer")
		}
		fps = n
	}

	feedURL := fmt.Sprintf("%s/v1/cameras/%s/feed?token=%s", server, sessionID, url.QueryEscape(token))

	fmt.Println("[CAMSIM] Starting camera simulator...")
	fmt.Printf("[CAMSIM] Connecting to %s\n", feedURL)

	conn, resp, err := websocket.DefaultDialer.Dial(feedURL, nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			fmt.Printf("[CAMSIM] Dial failed: %v, status=%d, body=%s\n", err, resp.StatusCode, string(body))
		}
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	fmt.Printf("[CAMSIM] Connected, pushing %dx%d frames at %d fps\n", frameWidth, frameHeight, fps)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("[CAMSIM] Shutting down...")
		conn.Close()
		os.Exit(0)
	}()

	// Reading keeps the server's pings answered. Control replies are printed
	// and otherwise ignored.
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				fmt.Printf("[CAMSIM] Read error: %v\n", err)
				return
			}
			fmt.Printf("[CAMSIM] Server says: %s\n", string(data))
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	start := time.Now()
	sent := 0
	for range ticker.C {
		frame, err := renderFrame(time.Since(start))
		if err != nil {
			log.Fatal("encode:", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			fmt.Printf("[CAMSIM] Write error: %v\n", err)
			return
		}
		sent++
		if sent%50 == 0 {
			fmt.Printf("[CAMSIM] Sent %d frames\n", sent)
		}
	}
}

// renderFrame draws a glass of water whose fill level drifts over time, so
// the backend always has a fresh scene to estimate.
func renderFrame(elapsed time.Duration) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))

	for y := 0; y < frameHeight; y++ {
		shade := uint8(200 - y*40/frameHeight)
		for x := 0; x < frameWidth; x++ {
			img.Set(x, y, color.RGBA{shade, shade, shade, 255})
		}
	}

	// The glass sits in the middle of the frame. Fill drifts between roughly
	// 20% and 90% on a slow sine.
	left, right := frameWidth*3/10, frameWidth*7/10
	top, bottom := frameHeight*15/100, frameHeight*95/100
	level := 0.55 + 0.35*math.Sin(elapsed.Seconds()/8)
	waterTop := bottom - int(float64(bottom-top)*level)

	for y := top; y < bottom; y++ {
		for x := left; x < right; x++ {
			if y >= waterTop {
				img.Set(x, y, color.RGBA{40, 70, 120, 255})
			} else {
				img.Set(x, y, color.RGBA{70, 70, 75, 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
