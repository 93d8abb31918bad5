package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

func runArchive() {
	if len(os.Args) > 1 && os.Args[1] == "show" {
		runArchiveShow(os.Args[2:])
		return
	}

	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	category := fs.String("category", "", "Category filter (mortgage, product-management, competitor-intel)")
	start := fs.String("start", "", "Earliest generation date, YYYY-MM-DD")
	end := fs.String("end", "", "Latest generation date, YYYY-MM-DD")
	limit := fs.Int("limit", 20, "Maximum records")
	search := fs.String("search", "", "Keyword to match in themes, insights and actions")
	rawJSON := fs.Bool("json", false, "Output JSON")
	fs.Parse(os.Args[1:])

	a := openApp(loadConfig())
	defer a.Close()

	cat := parseCategory(*category)
	var recs []model.ArchivedInsight
	if *search != "" {
		recs = a.Archive.Search(*search, cat)
	} else {
		recs = a.Archive.Browse(model.ArchiveFilter{
			Category: cat,
			Start:    parseDate(*start, a.Location),
			End:      parseDate(*end, a.Location),
			Limit:    *limit,
		})
	}

	if *rawJSON {
		printJSON(recs)
		return
	}
	if len(recs) == 0 {
		fmt.Println("No archived insights.")
		return
	}
	for _, r := range recs {
		lead := ""
		if len(r.Themes) > 0 {
			lead = r.Themes[0].Name
		}
		fmt.Printf("%s  %-18s %s  %3d articles  %d themes  %s\n",
			r.ID, r.Category, r.GeneratedAt.In(a.Location).Format("2006-01-02 15:04"),
			r.ArticleCount, len(r.Themes), truncate(lead, 40))
	}
}

func runArchiveShow(args []string) {
	fs := flag.NewFlagSet("archive show", flag.ExitOnError)
	rawJSON := fs.Bool("json", false, "Output JSON")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: obs archive show [-json] <id>")
		os.Exit(2)
	}

	a := openApp(loadConfig())
	defer a.Close()

	rec := a.Archive.Get(fs.Arg(0))
	if rec == nil {
		fmt.Fprintf(os.Stderr, "error: no archived insight %q\n", fs.Arg(0))
		os.Exit(1)
	}
	if *rawJSON {
		printJSON(rec)
		return
	}
	printInsight(*rec, a.Location)
}

func printInsight(r model.ArchivedInsight, loc *time.Location) {
	fmt.Printf("%s · %s · %d articles (%s to %s)\n", r.Category.Label(),
		r.GeneratedAt.In(loc).Format("Mon Jan 2 2006 15:04"), r.ArticleCount,
		r.DateRangeStart.In(loc).Format(time.DateOnly), r.DateRangeEnd.In(loc).Format(time.DateOnly))
	if r.Fallback {
		fmt.Printf("fallback: %s\n", r.Message)
	}
	if len(r.RecommendedActions) > 0 {
		fmt.Println("\nRecommended actions:")
		for _, ra := range r.RecommendedActions {
			fmt.Printf("  - %s\n", ra.Action)
		}
	}
	for _, th := range r.Themes {
		fmt.Printf("\n%s %s\n", th.Icon, th.Name)
		for _, in := range th.Insights {
			fmt.Printf("  • %s\n", in.Text)
			for _, ar := range in.Articles {
				fmt.Printf("      [%d] %s: %s\n", ar.ID, ar.Source, truncate(ar.Title, 70))
			}
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
