package learning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/metrics"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"name", "My name is Alice", []string{"Name: Alice"}},
		{"full name", "hi, my name is Alice Smith and I like tea", []string{"Name: Alice Smith"}},
		{"lowercase name", "my name is bob", []string{"Name: bob"}},
		{"call me", "Please call me Bob.", []string{"Name: Bob"}},
		{"call me back is not a name", "can you call me back later?", []string{"can you call me back later?"}},
		{"work", "I work at Acme Corp.", []string{"Works at: Acme Corp"}},
		{"work for", "i work for the city council, mostly remote", []string{"Works at: the city council"}},
		{"two facts", "I work at Acme and I live in Porto", []string{"Works at: Acme", "Lives in: Porto"}},
		{"remember fallback", "Remember that my sister's birthday is May 3", []string{"Remember that my sister's birthday is May 3"}},
		{"preference fallback", "I prefer dark roast coffee", []string{"I prefer dark roast coffee"}},
		{"no trigger", "what's the weather?", nil},
		{"trigger inside a word", "Is the weather in Hawaii like this all year?", nil},
		{"trigger before punctuation", "Honestly, I like: tea", []string{"Honestly, I like: tea"}},
		{"case change alters byte length", "I work at " + strings.Repeat("Ⱥ", 10) + " and b", []string{"Works at: " + strings.Repeat("Ⱥ", 10)}},
		{"empty", "   ", nil},
		{"repeated fact", "My name is Alice. Again, my name is Alice", []string{"Name: Alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.message))
		})
	}

	t.Run("long values are truncated", func(t *testing.T) {
		got := Extract("I live in " + strings.Repeat("x", 500))
		require.Len(t, got, 1)
		assert.LessOrEqual(t, len(got[0]), len("Lives in: ")+maxFactLength)
	})

	t.Run("multibyte values are truncated by rune", func(t *testing.T) {
		got := Extract("I live in x" + strings.Repeat("é", 300))
		require.Len(t, got, 1)
		assert.True(t, utf8.ValidString(got[0]))
		assert.Equal(t, "Lives in: x"+strings.Repeat("é", maxFactLength-1), got[0])
	})
}

type recordingWriter struct {
	mu     sync.Mutex
	writes []string
	md     []map[string]any
	seen   map[string]bool
}

func (w *recordingWriter) Write(_ context.Context, _ string, content string, opts models.WriteOptions) *models.WriteResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = map[string]bool{}
	}
	w.writes = append(w.writes, content)
	w.md = append(w.md, opts.Metadata)
	if opts.LongTerm {
		panic("learning writes must stay short-term")
	}
	if w.seen[strings.ToLower(content)] {
		return &models.WriteResult{Deduplicated: true}
	}
	w.seen[strings.ToLower(content)] = true
	return &models.WriteResult{Stored: true, Tiers: []models.Tier{models.TierShort}}
}

func (w *recordingWriter) Stats(context.Context, string) models.MemoryTotals {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.MemoryTotals{ShortTerm: len(w.seen), Total: len(w.seen)}
}

type fakeAudit struct {
	rows []*models.Interaction
	err  error
}

func (a *fakeAudit) Insert(_ context.Context, in *models.Interaction) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.rows = append(a.rows, in)
	return "row", nil
}

func TestProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("stores extracted facts", func(t *testing.T) {
		w, audit := &recordingWriter{}, &fakeAudit{}
		p := NewProcessor(w, audit, metrics.New(), quietLogger())

		res := p.Process(ctx, &models.Interaction{
			UserID:            "u1",
			ConversationID:    "c1",
			UserMessage:       "My name is Alice and I work at Acme",
			AssistantResponse: "Hello Alice",
			ResponseTime:      0.8,
		})
		assert.True(t, res.Processed)
		assert.Equal(t, 2, res.NewMemories)
		assert.Equal(t, 2, res.Totals.Total)
		assert.Equal(t, []string{"Name: Alice", "Works at: Acme"}, w.writes)
		assert.Equal(t, models.SourceLearning, w.md[0]["source"])
		assert.Equal(t, "c1", w.md[0]["conversation_id"])
		require.Len(t, audit.rows, 1)
	})

	t.Run("repeat is deduplicated", func(t *testing.T) {
		w := &recordingWriter{}
		p := NewProcessor(w, nil, nil, quietLogger())
		in := &models.Interaction{UserID: "u1", UserMessage: "My name is Alice", Source: models.SourcePipeline}

		assert.Equal(t, 1, p.Process(ctx, in).NewMemories)
		second := p.Process(ctx, in)
		assert.True(t, second.Processed)
		assert.Zero(t, second.NewMemories)
		assert.Equal(t, models.SourcePipeline, w.md[1]["source"])
	})

	t.Run("no trigger still records", func(t *testing.T) {
		w, audit := &recordingWriter{}, &fakeAudit{}
		p := NewProcessor(w, audit, nil, quietLogger())
		res := p.Process(ctx, &models.Interaction{UserID: "u1", UserMessage: "what's the weather?"})
		assert.True(t, res.Processed)
		assert.Zero(t, res.NewMemories)
		assert.Empty(t, w.writes)
		assert.Len(t, audit.rows, 1)
	})

	t.Run("audit failure is not fatal", func(t *testing.T) {
		p := NewProcessor(&recordingWriter{}, &fakeAudit{err: errors.New("disk full")}, nil, quietLogger())
		res := p.Process(ctx, &models.Interaction{UserID: "u1", UserMessage: "I live in Oslo"})
		assert.True(t, res.Processed)
		assert.Equal(t, 1, res.NewMemories)
	})

	t.Run("missing fields", func(t *testing.T) {
		p := NewProcessor(&recordingWriter{}, nil, nil, quietLogger())
		assert.False(t, p.Process(ctx, &models.Interaction{UserMessage: "My name is Alice"}).Processed)
		assert.False(t, p.Process(ctx, &models.Interaction{UserID: "u1"}).Processed)
		assert.False(t, p.Process(ctx, nil).Processed)
	})
}

func TestDispatcher(t *testing.T) {
	t.Run("runs tasks with their own deadline", func(t *testing.T) {
		d := NewDispatcher(2, 8, time.Second, metrics.New(), quietLogger())
		var ran atomic.Int32
		reqCtx, cancel := context.WithCancel(context.Background())
		cancel()

		for i := 0; i < 5; i++ {
			ok := d.Submit("task", func(ctx context.Context) {
				// The submitting request is long gone.
				if reqCtx.Err() != nil && ctx.Err() == nil {
					_, hasDeadline := ctx.Deadline()
					if hasDeadline {
						ran.Add(1)
					}
				}
			})
			require.True(t, ok)
		}
		d.Close()
		assert.Equal(t, int32(5), ran.Load())
	})

	t.Run("full queue drops without blocking", func(t *testing.T) {
		d := NewDispatcher(1, 1, time.Second, metrics.New(), quietLogger())
		release := make(chan struct{})
		started := make(chan struct{})

		require.True(t, d.Submit("blocker", func(context.Context) {
			close(started)
			<-release
		}))
		<-started
		require.True(t, d.Submit("queued", func(context.Context) {}))

		done := make(chan bool)
		go func() { done <- d.Submit("dropped", func(context.Context) {}) }()
		select {
		case ok := <-done:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("Submit blocked on a full queue")
		}

		close(release)
		d.Close()
	})

	t.Run("timeout and panic are contained", func(t *testing.T) {
		d := NewDispatcher(1, 4, 20*time.Millisecond, nil, quietLogger())
		var timedOut atomic.Bool
		d.Submit("slow", func(ctx context.Context) {
			<-ctx.Done()
			timedOut.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		})
		d.Submit("panics", func(context.Context) { panic("boom") })
		var after atomic.Bool
		d.Submit("after", func(context.Context) { after.Store(true) })
		d.Close()

		assert.True(t, timedOut.Load())
		assert.True(t, after.Load())
	})

	t.Run("submit after close", func(t *testing.T) {
		d := NewDispatcher(1, 1, time.Second, nil, quietLogger())
		d.Close()
		d.Close()
		assert.False(t, d.Submit("late", func(context.Context) {}))
	})
}
