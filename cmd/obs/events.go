package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/abelbrown/pulse/internal/otel"
)

const followPoll = 200 * time.Millisecond

func runEvents() {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	tail := fs.Int("tail", 50, "Show the last N matching events (0 = all)")
	follow := fs.Bool("f", false, "Keep printing new events as they are written")
	kind := fs.String("kind", "", "Event kind prefix, e.g. insight.")
	level := fs.String("level", "", "Minimum level: debug, info, warn, error")
	comp := fs.String("comp", "", "Component name")
	category := fs.String("category", "", "Insight category")
	date := fs.String("date", "", "Log day, YYYY-MM-DD (default: newest)")
	rawJSON := fs.Bool("json", false, "Print events as JSON lines")
	summary := fs.Bool("summary", false, "Print per-kind counts for the last N matching events instead")
	fs.Parse(os.Args[1:])

	minLevel, err := otel.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	filter := otel.Filter{Kind: *kind, Category: *category, Comp: *comp, MinLevel: minLevel, Limit: *tail}

	path, err := eventLogPath(loadConfig().LogDir(), *date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n  Start the pulse server to produce an event log.\n", err)
		os.Exit(1)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	show := func(ev otel.Event) {
		if *rawJSON {
			line, _ := json.Marshal(ev)
			fmt.Println(string(line))
			return
		}
		fmt.Println(formatEvent(ev))
	}

	er := newEventReader(f)
	if *summary {
		counts, total, err := er.summarize(filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printSummary(os.Stdout, counts, total)
		return
	}
	events, err := er.tail(filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for _, ev := range events {
		show(ev)
	}
	if !*follow {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	filter.Limit = 0
	for {
		err := er.each(func(ev otel.Event) {
			if filter.Match(ev) {
				show(ev)
			}
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(followPoll):
		}
	}
}

// eventLogPath returns the daily log for date, or the newest one in dir.
func eventLogPath(dir, date string) (string, error) {
	if date != "" {
		p := filepath.Join(dir, "pulse-"+date+".jsonl")
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("no event log for %s in %s", date, dir)
		}
		return p, nil
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "pulse-*.jsonl"))
	if len(matches) == 0 {
		return "", fmt.Errorf("no event logs in %s", dir)
	}
	// pulse-YYYY-MM-DD sorts chronologically.
	return slices.Max(matches), nil
}

// eventReader decodes JSONL events, holding back an unterminated final
// line until the writer finishes it.
type eventReader struct {
	r       *bufio.Reader
	partial []byte
}

func newEventReader(r io.Reader) *eventReader {
	return &eventReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// each calls fn for every complete line up to EOF, skipping blank and
// malformed ones.
func (er *eventReader) each(fn func(otel.Event)) error {
	for {
		chunk, err := er.r.ReadBytes('\n')
		er.partial = append(er.partial, chunk...)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line := er.partial
		er.partial = nil
		var ev otel.Event
		if json.Unmarshal(line, &ev) == nil && ev.Kind != "" {
			fn(ev)
		}
	}
}

// tail returns the last f.Limit events matching f, oldest first.
func (er *eventReader) tail(f otel.Filter) ([]otel.Event, error) {
	if f.Limit <= 0 {
		var all []otel.Event
		err := er.each(func(ev otel.Event) {
			if f.Match(ev) {
				all = append(all, ev)
			}
		})
		return all, err
	}
	ring := otel.NewRingBuffer(f.Limit)
	err := er.each(func(ev otel.Event) {
		if f.Match(ev) {
			ring.Push(ev)
		}
	})
	return ring.Snapshot(), err
}

// summarize counts the last f.Limit matching events by kind (the ring
// default when unset) and reports how many matched overall.
func (er *eventReader) summarize(f otel.Filter) (map[otel.EventKind]int, uint64, error) {
	ring := otel.NewRingBuffer(f.Limit)
	err := er.each(func(ev otel.Event) {
		if f.Match(ev) {
			ring.Push(ev)
		}
	})
	return ring.Counts(), ring.Total(), err
}

func printSummary(w io.Writer, counts map[otel.EventKind]int, total uint64) {
	kinds := make([]otel.EventKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "%-28s %6d\n", k, counts[k])
	}
	fmt.Fprintf(w, "%-28s %6d\n", "matched in log", total)
}

func formatEvent(ev otel.Event) string {
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %-7s %-24s", ev.Time.Local().Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)
	if ev.Msg != "" {
		b.WriteString(" " + ev.Msg)
	}
	for _, kv := range [][2]string{
		{"cat", ev.Category},
		{"src", ev.Source},
		{"llm", ev.Provider},
		{"rec", ev.RecordID},
		{"err", ev.Err},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, " %s=%s", kv[0], kv[1])
		}
	}
	if ev.Count > 0 {
		fmt.Fprintf(&b, " n=%d", ev.Count)
	}
	if ev.DurMs > 0 {
		fmt.Fprintf(&b, " %s", time.Duration(ev.DurMs*float64(time.Millisecond)).Round(time.Millisecond/10))
	}
	return b.String()
}
