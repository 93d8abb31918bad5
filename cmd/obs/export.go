package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/abelbrown/pulse/internal/model"
)

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	category := fs.String("category", "", "Category filter")
	start := fs.String("start", "", "Earliest generation date, YYYY-MM-DD")
	end := fs.String("end", "", "Latest generation date, YYYY-MM-DD")
	limit := fs.Int("limit", 500, "Maximum records")
	bucket := fs.String("bucket", "", "S3 bucket (default: config export.bucket)")
	dryRun := fs.Bool("n", false, "Print object keys without uploading")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	if *bucket != "" {
		cfg.Export.Bucket = *bucket
	}
	if cfg.Export.Bucket == "" {
		fmt.Fprintln(os.Stderr, "error: no export bucket; set PULSE_S3_BUCKET or -bucket")
		os.Exit(1)
	}

	a := openApp(cfg)
	defer a.Close()

	recs := a.Archive.Browse(model.ArchiveFilter{
		Category: parseCategory(*category),
		Start:    parseDate(*start, a.Location),
		End:      parseDate(*end, a.Location),
		Limit:    *limit,
	})
	if len(recs) == 0 {
		fmt.Println("Nothing to export.")
		return
	}

	ctx := context.Background()
	exp, err := a.Exporter(ctx)
	if err != nil {
		log.Fatalf("export: %v", err)
	}

	if *dryRun {
		for _, r := range recs {
			fmt.Printf("s3://%s/%s\n", cfg.Export.Bucket, exp.Key(r))
		}
		return
	}

	n, err := exp.Export(ctx, recs)
	fmt.Printf("Exported %d of %d records to s3://%s\n", n, len(recs), cfg.Export.Bucket)
	if err != nil {
		log.Fatalf("export: %v", err)
	}
}
