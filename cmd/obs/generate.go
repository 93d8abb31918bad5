package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	category := fs.String("category", "", "Only this category (default: all)")
	fetchFirst := fs.Bool("fetch", false, "Fetch all sources before generating")
	verbose := fs.Bool("v", false, "Print each generated set")
	force := fs.Bool("force", false, "Regenerate even when today's set is cached")
	fs.Parse(os.Args[1:])

	a := openApp(loadConfig())
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *fetchFirst {
		start := time.Now()
		fetched, added, err := a.Coord.FetchOnce(ctx)
		if err != nil {
			log.Fatalf("fetch: %v", err)
		}
		fmt.Printf("Fetched %d articles (%d new) in %s\n", fetched, added, time.Since(start).Round(time.Millisecond))
	}

	var recs []model.ArchivedInsight
	cat := parseCategory(*category)
	start := time.Now()
	var err error
	switch {
	case cat.IsAll() && *force:
		recs, err = a.Insights.RegenerateAll(ctx)
	case cat.IsAll():
		recs, err = a.Insights.WarmAll(ctx)
	default:
		get := a.Insights.Insights
		if *force {
			get = a.Insights.Regenerate
		}
		var rec model.ArchivedInsight
		rec, err = get(ctx, cat)
		recs = append(recs, rec)
	}
	if err != nil {
		log.Fatalf("generate: %v", err)
	}

	for _, r := range recs {
		status := "model"
		switch {
		case !r.Success:
			status = "empty"
		case r.Fallback:
			status = "fallback"
		}
		fmt.Printf("%-18s %-8s %3d articles  %d themes  %s\n", r.Category, status, r.ArticleCount, len(r.Themes), r.Message)
		if *verbose {
			printInsight(r, a.Location)
			fmt.Println()
		}
	}
	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
}
