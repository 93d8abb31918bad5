package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func runPurge() {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	days := fs.Int("days", 0, "Retention in days (default: config retention_days)")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	if *days > 0 {
		cfg.RetentionDays = *days
	}
	a := openApp(cfg)
	defer a.Close()

	n, err := a.Coord.Purge()
	if err != nil {
		log.Fatalf("purge: %v", err)
	}
	fmt.Printf("Deleted %d articles older than %d days\n", n, int(cfg.Retention().Hours()/24))
}
