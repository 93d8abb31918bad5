package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/pulse/internal/otel"
)

func TestEventLogPath(t *testing.T) {
	dir := t.TempDir()
	if _, err := eventLogPath(dir, ""); err == nil {
		t.Error("expected error for empty log dir")
	}

	for _, day := range []string{"2024-02-28", "2024-03-01", "2024-02-29"} {
		if err := os.WriteFile(filepath.Join(dir, "pulse-"+day+".jsonl"), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := eventLogPath(dir, "")
	if err != nil || filepath.Base(got) != "pulse-2024-03-01.jsonl" {
		t.Errorf("newest = %q, %v", got, err)
	}
	got, err = eventLogPath(dir, "2024-02-29")
	if err != nil || filepath.Base(got) != "pulse-2024-02-29.jsonl" {
		t.Errorf("dated = %q, %v", got, err)
	}
	if _, err := eventLogPath(dir, "2023-01-01"); err == nil {
		t.Error("expected error for missing day")
	}
}

const sampleLog = `{"t":"2024-03-01T10:00:00Z","level":"info","kind":"fetch.complete","comp":"fetch","count":12}
not json
{"t":"2024-03-01T10:00:01Z","level":"info","kind":"insight.cache_hit","comp":"insight","category":"mortgage"}

{"t":"2024-03-01T10:00:02Z","level":"error","kind":"insight.parse_error","comp":"insight","category":"mortgage"}
{"t":"2024-03-01T10:00:03Z","level":"warn","kind":"insight.fallback","comp":"insight","category":"competitor-intel"}
`

func TestEventReaderTail(t *testing.T) {
	tests := []struct {
		name string
		f    otel.Filter
		want []otel.EventKind
	}{
		{"all", otel.Filter{},
			[]otel.EventKind{otel.KindFetchComplete, otel.KindCacheHit, otel.KindParseError, otel.KindFallback}},
		{"tail 2", otel.Filter{Limit: 2},
			[]otel.EventKind{otel.KindParseError, otel.KindFallback}},
		{"category", otel.Filter{Category: "mortgage", Limit: 10},
			[]otel.EventKind{otel.KindCacheHit, otel.KindParseError}},
		{"warn and above", otel.Filter{MinLevel: otel.LevelWarn},
			[]otel.EventKind{otel.KindParseError, otel.KindFallback}},
		{"kind prefix", otel.Filter{Kind: "fetch."},
			[]otel.EventKind{otel.KindFetchComplete}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newEventReader(strings.NewReader(sampleLog)).tail(tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, ev := range got {
				if ev.Kind != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, ev.Kind, tt.want[i])
				}
			}
		})
	}
}

func TestEventReaderHoldsPartialLine(t *testing.T) {
	er := newEventReader(strings.NewReader(`{"kind":"sys.startup"}` + "\n" + `{"kind":"sys.sh`))

	var kinds []otel.EventKind
	collect := func(ev otel.Event) { kinds = append(kinds, ev.Kind) }
	if err := er.each(collect); err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 1 || kinds[0] != otel.KindStartup {
		t.Fatalf("first pass = %v", kinds)
	}

	// The writer finishes the line on a later poll.
	er.r.Reset(strings.NewReader(`utdown"}` + "\n"))
	if err := er.each(collect); err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 2 || kinds[1] != otel.KindShutdown {
		t.Errorf("second pass = %v", kinds)
	}
}

func TestEventReaderSummarize(t *testing.T) {
	counts, total, err := newEventReader(strings.NewReader(sampleLog)).summarize(otel.Filter{Kind: "insight.", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 matching events", total)
	}
	if counts[otel.KindCacheHit] != 0 || counts[otel.KindParseError] != 1 || counts[otel.KindFallback] != 1 {
		t.Errorf("counts = %v, want the last two only", counts)
	}

	var out strings.Builder
	printSummary(&out, counts, total)
	if !strings.Contains(out.String(), "insight.fallback") || !strings.Contains(out.String(), "matched in log") {
		t.Errorf("summary output = %q", out.String())
	}
}

func TestFormatEvent(t *testing.T) {
	ev := otel.Event{
		Time:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local),
		Level:    otel.LevelWarn,
		Kind:     otel.KindFallback,
		Comp:     "insight",
		Msg:      "no model",
		Category: "mortgage",
		DurMs:    1.5,
	}
	got := formatEvent(ev)
	for _, want := range []string{"10:00:00.000", "WARN", "insight.fallback", "no model", "cat=mortgage", "1.5ms"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatEvent = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "src=") {
		t.Errorf("empty fields should be omitted: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"a longer headline", 10, "a longe..."},
		{"日本語のテキスト", 6, "日本語..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
