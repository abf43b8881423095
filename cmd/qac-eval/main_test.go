package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ricesearch/qac-eval/internal/bus"
	"github.com/ricesearch/qac-eval/internal/config"
	"github.com/ricesearch/qac-eval/internal/evaluation"
	"github.com/ricesearch/qac-eval/internal/history"
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/logger"
	"github.com/ricesearch/qac-eval/internal/prep"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, a *app, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), a, stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, a *app, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := a.rootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestEval_NoSeenFile(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\ndog\n")
	c := writeFile(t, dir, "c.txt", "cat\tdog\nfish\tbird\n")

	out, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}

	want := "# unseen queries: 2\n" +
		"MRR: 0.5000\n" +
		"Success Rate: 0.5000\n" +
		"# total queries: 2\n" +
		"MRR: 0.5000\n" +
		"Success Rate: 0.5000\n"
	if out != want {
		t.Errorf("stdout:\n%s\nwant:\n%s", out, want)
	}
}

func TestEval_HelpExplainsMissingSeenStanza(t *testing.T) {
	out, _, err := execute(t, newApp(), "", "eval", "--help")
	if err != nil {
		t.Fatalf("eval --help error = %v", err)
	}
	if !strings.Contains(out, "Without --seen no query can be seen, so only the unseen and total stanzas") {
		t.Errorf("eval help = %q, want a note on the missing seen stanza", out)
	}
}

func TestEval_SeenSplit(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\ndog\n")
	c := writeFile(t, dir, "c.txt", "cat\tdog\nfish\tbird\n")
	s := writeFile(t, dir, "seen.txt", "cat\n")

	out, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c, "--seen", s)
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}

	want := "# seen queries: 1\n" +
		"MRR: 1.0000\n" +
		"Success Rate: 1.0000\n" +
		"# unseen queries: 1\n" +
		"MRR: 0.0000\n" +
		"Success Rate: 0.0000\n" +
		"# total queries: 2\n" +
		"MRR: 0.5000\n" +
		"Success Rate: 0.5000\n"
	if out != want {
		t.Errorf("stdout:\n%s\nwant:\n%s", out, want)
	}
}

func TestEval_TopKFlag(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\n")
	c := writeFile(t, dir, "c.txt", "dog\tcat\n")

	out, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c, "--topk", "1")
	if err != nil {
		t.Fatalf("eval error = %v", err)
	}
	if !strings.Contains(out, "# total queries: 1\nMRR: 0.0000\nSuccess Rate: 0.0000\n") {
		t.Errorf("stdout = %q, want zero metrics at topk 1", out)
	}
}

func TestEval_EmptySeenPartitionPrintsNothing(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\ndog\n")
	c := writeFile(t, dir, "c.txt", "cat\tdog\nfish\tbird\n")
	s := writeFile(t, dir, "seen.txt", "")

	out, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c, "--seen", s)
	if !errors.IsEmptyPartition(err) {
		t.Fatalf("eval error = %v, want %s", err, errors.CodeEmptyPartition)
	}
	if out != "" {
		t.Errorf("stdout = %q, want nothing", out)
	}
}

func TestEval_Misaligned(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\ndog\nfish\n")
	c := writeFile(t, dir, "c.txt", "cat\n")

	out, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c)
	if !errors.IsInputAlignment(err) {
		t.Fatalf("eval error = %v, want %s", err, errors.CodeInputAlignment)
	}
	if out != "" {
		t.Errorf("stdout = %q, want nothing", out)
	}

	t.Setenv("QAC_ALIGNMENT", config.AlignTruncate)
	out, _, err = execute(t, newApp(), "", "eval", "--query", q, "--completions", c)
	if err != nil {
		t.Fatalf("eval (truncate) error = %v", err)
	}
	if !strings.Contains(out, "# total queries: 1\n") {
		t.Errorf("stdout = %q, want one total query", out)
	}
}

func TestEval_MissingFile(t *testing.T) {
	dir := t.TempDir()
	c := writeFile(t, dir, "c.txt", "cat\n")

	_, _, err := execute(t, newApp(), "", "eval", "--query", filepath.Join(dir, "missing.txt"), "--completions", c)
	if errors.CodeOf(err) != errors.CodeIO {
		t.Errorf("eval error = %v, want %s", err, errors.CodeIO)
	}
}

func TestEval_RequiresFlags(t *testing.T) {
	if _, _, err := execute(t, newApp(), "", "eval", "--query", "q.txt"); err == nil {
		t.Error("eval without --completions succeeded, want error")
	}
}

func TestEval_PublishAndRecord(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\ndog\n")
	c := writeFile(t, dir, "c.txt", "cat\tdog\nfish\tbird\n")

	memBus := bus.NewMemoryBus(logger.Discard())
	store := history.NewMemoryStore(0)

	var (
		mu     sync.Mutex
		events []bus.Event
	)
	err := memBus.Subscribe(context.Background(), bus.TopicEvalCompleted, func(ctx context.Context, ev bus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	a := &app{
		newBus: func(config.BusConfig, *logger.Logger) (bus.Bus, error) {
			return memBus, nil
		},
		newStore: func(config.HistoryConfig) (history.Store, error) {
			return store, nil
		},
	}

	if _, _, err := execute(t, a, "", "eval", "--query", q, "--completions", c, "--publish", "--record"); err != nil {
		t.Fatalf("eval error = %v", err)
	}

	// Close on the publish path drains handlers.
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	summary, ok := events[0].Payload.(*evaluation.RunSummary)
	if !ok {
		t.Fatalf("payload type = %T, want *evaluation.RunSummary", events[0].Payload)
	}
	if events[0].CorrelationID != summary.ID {
		t.Errorf("CorrelationID = %q, want run ID %q", events[0].CorrelationID, summary.ID)
	}
	if summary.Records != 2 || summary.TopK != 10 {
		t.Errorf("summary = %+v, want 2 records at topk 10", summary)
	}
	if summary.QueryDigest == "" || summary.CompletionDigest == "" {
		t.Error("summary is missing file digests")
	}

	runs, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.ID {
		t.Errorf("recorded runs = %v, want the published run", runs)
	}
}

func TestEval_PublishBusDisabled(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\n")
	c := writeFile(t, dir, "c.txt", "cat\n")

	out, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c, "--publish")
	if err == nil {
		t.Fatal("eval --publish with bus type none succeeded, want error")
	}
	if !strings.HasPrefix(out, "# unseen queries: 1\n") {
		t.Errorf("stdout = %q, want the report printed before publishing", out)
	}
}

func TestEval_MetricsFile(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\ndog\n")
	c := writeFile(t, dir, "c.txt", "cat\tdog\nfish\tbird\n")
	prom := filepath.Join(dir, "qac.prom")

	if _, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c, "--metrics-file", prom); err != nil {
		t.Fatalf("eval error = %v", err)
	}

	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `qac_eval_mrr{partition="total"} 0.5`) {
		t.Errorf("metrics file = %q, want total mrr 0.5", data)
	}
}

func TestEval_PublishMemoryBusWithoutEventLog(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\n")
	c := writeFile(t, dir, "c.txt", "cat\n")

	t.Setenv("QAC_BUS_TYPE", "memory")

	out, stderr, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c, "--publish")
	if !errors.IsValidation(err) {
		t.Fatalf("eval error = %v, want %s", err, errors.CodeValidation)
	}
	if strings.Contains(stderr, "Published run summary") {
		t.Errorf("stderr = %q, want no publish confirmation", stderr)
	}
	if !strings.HasPrefix(out, "# unseen queries: 1\n") {
		t.Errorf("stdout = %q, want the report printed before publishing", out)
	}
}

// subscribedBus signals once a handler has been registered.
type subscribedBus struct {
	*bus.MemoryBus
	subscribed chan struct{}
}

func (b *subscribedBus) Subscribe(ctx context.Context, topic string, handler bus.Handler) error {
	if err := b.MemoryBus.Subscribe(ctx, topic, handler); err != nil {
		return err
	}
	close(b.subscribed)
	return nil
}

func TestRecord_SavesPublishedRuns(t *testing.T) {
	t.Setenv("QAC_BUS_TYPE", "kafka")
	t.Setenv("QAC_KAFKA_BROKERS", "localhost:9092")

	store := history.NewMemoryStore(0)
	b := &subscribedBus{MemoryBus: bus.NewMemoryBus(logger.Discard()), subscribed: make(chan struct{})}

	a := &app{
		newBus: func(cfg config.BusConfig, _ *logger.Logger) (bus.Bus, error) {
			if cfg.Topic != bus.TopicEvalCompleted {
				t.Errorf("bus topic = %q, want %q", cfg.Topic, bus.TopicEvalCompleted)
			}
			return b, nil
		},
		newStore: func(config.HistoryConfig) (history.Store, error) { return store, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := executeContext(t, ctx, a, "", "record")
		done <- err
	}()

	select {
	case <-b.subscribed:
	case err := <-done:
		t.Fatalf("record exited before subscribing: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("record did not subscribe")
	}

	run := &evaluation.RunSummary{ID: "run-9", StartedAt: time.Now(), TopK: 10, Records: 3}
	event := bus.NewEvent(bus.TypeEvalCompleted, "remote", run)
	if err := b.Publish(context.Background(), bus.TopicEvalCompleted, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("record error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("record did not stop after cancellation")
	}

	// Close drained the in-flight handler before record returned.
	runs, _ := store.Recent(context.Background(), 0)
	if len(runs) != 1 || runs[0].ID != "run-9" {
		t.Errorf("recorded runs = %v, want run-9", runs)
	}
}

func TestRecord_RequiresKafka(t *testing.T) {
	_, _, err := execute(t, newApp(), "", "record")
	if !errors.IsValidation(err) {
		t.Errorf("record error = %v, want %s", err, errors.CodeValidation)
	}
}

func TestHistory_Store(t *testing.T) {
	store := history.NewMemoryStore(0)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = store.Save(context.Background(), &evaluation.RunSummary{
		ID:        "run-1",
		StartedAt: started,
		TopK:      10,
		Records:   4,
		Reports: []evaluation.Report{
			{Partition: evaluation.PartitionTotal, Count: 4, MeanMRR: 0.5, MeanSuccessRate: 0.75},
		},
	})

	a := newApp()
	a.newStore = func(config.HistoryConfig) (history.Store, error) { return store, nil }

	out, _, err := execute(t, a, "", "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	for _, want := range []string{"STARTED", "run-1", "0.5000", "0.7500", "2026-03-01T12:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout = %q, want it to contain %q", out, want)
		}
	}
}

func TestHistory_EventLog(t *testing.T) {
	dir := t.TempDir()
	q := writeFile(t, dir, "q.txt", "cat\n")
	c := writeFile(t, dir, "c.txt", "cat\n")
	eventLog := filepath.Join(dir, "events.jsonl")

	t.Setenv("QAC_BUS_TYPE", "memory")
	t.Setenv("QAC_EVENT_LOG", eventLog)

	if _, _, err := execute(t, newApp(), "", "eval", "--query", q, "--completions", c, "--publish"); err != nil {
		t.Fatalf("eval error = %v", err)
	}

	out, _, err := execute(t, newApp(), "", "history", "--event-log", eventLog)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "1.0000") {
		t.Errorf("stdout = %q, want the logged run with MRR 1.0000", out)
	}
}

func TestHistory_Empty(t *testing.T) {
	out, _, err := execute(t, newApp(), "", "history", "--event-log", filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if out != "No runs recorded.\n" {
		t.Errorf("stdout = %q, want empty notice", out)
	}
}

func TestNormalizeCmd(t *testing.T) {
	out, _, err := execute(t, newApp(), "Hello World  \ncafé\nOK\n", "normalize")
	if err != nil {
		t.Fatalf("normalize error = %v", err)
	}
	if out != "hello world\nok\n" {
		t.Errorf("stdout = %q, want %q", out, "hello world\nok\n")
	}
}

func TestSplitCmd(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "aol")
	input := strings.Repeat("q\n", 10)

	if _, _, err := execute(t, newApp(), input, "split", "--output", prefix, "--valid", "0.2", "--test", "0.3"); err != nil {
		t.Fatalf("split error = %v", err)
	}

	train, valid, test := prep.Paths(prefix)
	for path, want := range map[string]int{train: 5, valid: 2, test: 3} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", path, err)
		}
		if got := len(strings.Split(string(data), "\n")); got != want {
			t.Errorf("%s has %d lines, want %d", filepath.Base(path), got, want)
		}
	}
}

func TestPrefixCmd(t *testing.T) {
	out, _, err := execute(t, newApp(), "hello\nx\n", "prefix", "--min-prefix", "5", "--min-suffix", "0")
	if err != nil {
		t.Fatalf("prefix error = %v", err)
	}
	if out != "hello\thello\n" {
		t.Errorf("stdout = %q, want %q", out, "hello\thello\n")
	}
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, newApp(), "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "qac-eval dev\n") {
		t.Errorf("stdout = %q, want version banner", out)
	}
}
