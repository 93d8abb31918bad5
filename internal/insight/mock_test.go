package insight

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

// mockCompleter returns a canned response and counts calls.
type mockCompleter struct {
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int32

	mu         sync.Mutex
	lastPrompt string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastPrompt = prompt
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.response, m.err
}

type unavailableCompleter struct{ mockCompleter }

func (u *unavailableCompleter) Available() bool { return false }

// articlesFrom builds n articles per source, newest first.
func articlesFrom(category model.Category, base time.Time, perSource int, sources ...string) []model.Article {
	var out []model.Article
	for _, src := range sources {
		for i := 0; i < perSource; i++ {
			out = append(out, model.Article{
				Title:    fmt.Sprintf("%s story %d", src, i),
				Link:     fmt.Sprintf("https://%s.example.com/%d", src, i),
				Source:   src,
				Category: category,
				Summary:  fmt.Sprintf("Summary of %s story %d", src, i),
				PubDate:  base.Add(-time.Duration(i) * time.Hour),
			})
		}
	}
	return out
}
