package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(os.Args[1:])

	a := openApp(loadConfig())
	defer a.Close()

	st, err := a.Store.Stats()
	if err != nil {
		log.Fatalf("stats: %v", err)
	}

	fmt.Printf("Articles:              %d\n", st.Articles)
	fmt.Printf("Archived insights:     %d\n", st.Insights)
	if st.Articles > 0 {
		now := time.Now()
		fmt.Printf("Newest published:      %s (%.0fh ago)\n",
			st.NewestArticle.In(a.Location).Format(time.RFC3339), now.Sub(st.NewestArticle).Hours())
		fmt.Printf("Oldest published:      %s (%.0fd ago)\n",
			st.OldestArticle.In(a.Location).Format(time.RFC3339), now.Sub(st.OldestArticle).Hours()/24)
	}

	fmt.Println("\nBy category:")
	for _, c := range model.Categories() {
		fmt.Printf("  %-22s %d\n", c, st.ByCategory[string(c)])
	}

	fmt.Printf("\nBy source (%d):\n", len(st.BySource))
	names := make([]string, 0, len(st.BySource))
	for name := range st.BySource {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if st.BySource[names[i]] != st.BySource[names[j]] {
			return st.BySource[names[i]] > st.BySource[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Printf("  %-35s %d\n", truncate(name, 35), st.BySource[name])
	}

	fmt.Printf("\nConfigured sources:    %d\n", len(a.Sources))
	models := a.Models.Names()
	if len(models) == 0 {
		fmt.Println("Models:                none (fallback insights only)")
	} else {
		fmt.Printf("Models:                %v\n", models)
	}
}
