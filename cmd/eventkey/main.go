// Command eventkey mints a bearer key for POST /api/events, signed with EVENT_SIGNING_KEY.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/config"
)

func main() {
	publisher := flag.String("publisher", "", "name of the publishing service")
	eventList := flag.String("events", "", "comma-separated event names the key may publish; empty allows all")
	ttl := flag.Duration("ttl", 0, "key lifetime; zero never expires")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Events.SigningKey == "" {
		log.Fatal("EVENT_SIGNING_KEY is not set")
	}
	if *publisher == "" {
		log.Fatal("-publisher is required")
	}

	var names []string
	for _, name := range strings.Split(*eventList, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	token, expiresAt, err := auth.NewTokenManager(cfg.Events.SigningKey, *ttl).GenerateToken(*publisher, names...)
	if err != nil {
		log.Fatalf("failed to sign key: %v", err)
	}
	fmt.Println(token)
	if !expiresAt.IsZero() {
		log.Printf("expires at %s", expiresAt.Format(time.RFC3339))
	}
}
