package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/pulse/internal/app"
	"github.com/abelbrown/pulse/internal/config"
	"github.com/abelbrown/pulse/internal/model"
)

// loadConfig reads .env and the config file or fatals.
func loadConfig() *config.Config {
	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openApp wires pulse from cfg or fatals.
func openApp(cfg *config.Config) *app.App {
	a, err := app.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open pulse: %v", err)
	}
	return a
}

// parseCategory parses a flag value; blank means all.
func parseCategory(s string) model.Category {
	if strings.TrimSpace(s) == "" {
		return model.CategoryAll
	}
	c, err := model.ParseCategory(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	return c
}

// parseDate parses an optional YYYY-MM-DD flag in loc.
func parseDate(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid date %q, want YYYY-MM-DD\n", s)
		os.Exit(2)
	}
	return t
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
