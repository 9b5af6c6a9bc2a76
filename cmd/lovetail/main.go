// lovetail follows the backend's live activity feed from a terminal and
// prints each event as one JSON line. Useful as a smoke check for the stream
// credentials without starting the full gateway.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lovebox/internal/stream"
)

func main() {
	api := flag.String("api", "http://127.0.0.1:3001", "backend base URL")
	pass := flag.String("pass", os.Getenv("LOVEBOX_ADMIN_PASS"), "administrative passphrase")
	flag.Parse()

	endpoint := strings.TrimRight(*api, "/") + "/api/event/stream"

	client := stream.NewClient(endpoint,
		stream.WithOnEvent(func(evt stream.ActivityEvent) {
			line, err := json.Marshal(evt)
			if err != nil {
				return
			}
			fmt.Println(string(line))
		}),
	)

	if err := client.Start(context.Background(), *pass); err != nil {
		log.Fatalf("open stream at %s: %v", endpoint, err)
	}
	log.Printf("following %s (session %s)", endpoint, client.SessionID())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			client.Stop()
			return
		case <-ticker.C:
			if client.State() == stream.StateError {
				log.Fatalf("stream ended: %v", client.Err())
			}
		}
	}
}
