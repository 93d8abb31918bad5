package main

import (
	"flag"
	"log"
	"os"

	"github.com/abelbrown/pulse/internal/ui"
)

func runBrowse() {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	limit := fs.Int("limit", 200, "Maximum records per listing")
	fs.Parse(os.Args[1:])

	a := openApp(loadConfig())
	defer a.Close()

	if err := ui.Run(a.Archive, a.Location, *limit); err != nil {
		log.Fatalf("browse: %v", err)
	}
}
