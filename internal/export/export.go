// Package export copies archived insight records to S3 as JSON objects.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
)

// Putter is the slice of the S3 client the exporter needs.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter writes records under a bucket prefix.
type Exporter struct {
	client Putter
	bucket string
	prefix string
	loc    *time.Location
	log    *otel.Logger
}

// New creates an Exporter over an existing client. The prefix gets a
// trailing slash if it lacks one; loc picks the date in object keys.
func New(client Putter, bucket, prefix string, loc *time.Location, log *otel.Logger) *Exporter {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{client: client, bucket: bucket, prefix: prefix, loc: loc, log: log}
}

// NewS3 builds an Exporter from the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix, region string, loc *time.Location, log *otel.Logger) (*Exporter, error) {
	if bucket == "" {
		return nil, errors.New("export: bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, prefix, loc, log), nil
}

// Key returns the object key for rec.
func (e *Exporter) Key(rec model.ArchivedInsight) string {
	day := rec.GeneratedAt.In(e.loc).Format(time.DateOnly)
	return fmt.Sprintf("%sinsights/%s/%s/%s.json", e.prefix, rec.Category, day, rec.ID)
}

// Export uploads each record and returns how many succeeded. A failed
// upload does not stop the rest; all failures are joined in the error.
func (e *Exporter) Export(ctx context.Context, records []model.ArchivedInsight) (int, error) {
	start := time.Now()
	var errs []error
	n := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.put(ctx, rec); err != nil {
			errs = append(errs, err)
			e.log.Emit(otel.Event{
				Level:    otel.LevelError,
				Kind:     otel.KindExportError,
				Comp:     "export",
				Category: string(rec.Category),
				RecordID: rec.ID,
				Err:      err.Error(),
			})
			continue
		}
		n++
	}

	e.log.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindExport,
		Comp:  "export",
		Count: n,
		Dur:   time.Since(start),
		Msg:   "s3://" + e.bucket + "/" + e.prefix,
	})
	return n, errors.Join(errs...)
}

func (e *Exporter) put(ctx context.Context, rec model.ArchivedInsight) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rec.ID, err)
	}
	key := e.Key(rec)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
