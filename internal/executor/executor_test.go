package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/catalog"
	"github.com/ShayCichocki/quoteflow/internal/optimizer"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// echoInterpreter maps "tool: rest" to ToolCall{Name: tool, Args: {"q": rest}}.
// Text without a colon goes to the "price" tool.
type echoInterpreter struct {
	mu      sync.Mutex
	calls   int
	recent  map[string][]string
	shared  map[string]map[string]any
	failFor string
}

func (in *echoInterpreter) Interpret(ctx context.Context, text string, shared map[string]any, recent []models.TaskResult) (ToolCall, error) {
	in.mu.Lock()
	in.calls++
	if in.recent == nil {
		in.recent = make(map[string][]string)
		in.shared = make(map[string]map[string]any)
	}
	var texts []string
	for _, r := range recent {
		texts = append(texts, r.Subtask)
	}
	in.recent[text] = texts
	in.shared[text] = shared
	in.mu.Unlock()

	if in.failFor != "" && strings.Contains(text, in.failFor) {
		return ToolCall{}, errors.New("cannot understand subtask")
	}
	name, rest, ok := strings.Cut(text, ":")
	if !ok {
		return ToolCall{Name: "price", Args: map[string]any{"q": text}}, nil
	}
	return ToolCall{Name: strings.TrimSpace(name), Args: map[string]any{"q": strings.TrimSpace(rest)}}, nil
}

type toolFunc func(ctx context.Context, args map[string]any) (any, error)

// fakeInvoker counts invocations per tool.
type fakeInvoker struct {
	tools map[string]toolFunc
	calls atomic.Int64
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{tools: map[string]toolFunc{
		"price": func(_ context.Context, args map[string]any) (any, error) {
			return "quote for " + args["q"].(string), nil
		},
		"broken": func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("database unavailable")
		},
	}}
}

func (f *fakeInvoker) Has(name string) bool {
	_, ok := f.tools[name]
	return ok
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	f.calls.Add(1)
	return f.tools[name](ctx, args)
}

type recordingSink struct {
	mu            sync.Mutex
	quotes        []models.TaskResult
	optimizations []models.OptimizationResult
}

func (s *recordingSink) SaveQuote(_ context.Context, r models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, r)
	return nil
}

func (s *recordingSink) SaveOptimization(_ context.Context, r models.OptimizationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optimizations = append(s.optimizations, r)
	return nil
}

func mustExecutor(t *testing.T, in Interpreter, inv Invoker, opts ...Option) *Executor {
	t.Helper()
	e, err := New(RequiredConfig{Interpreter: in, Invoker: inv}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  RequiredConfig
		want error
	}{
		{"missing interpreter", RequiredConfig{Invoker: newFakeInvoker()}, ErrMissingInterpreter},
		{"missing invoker", RequiredConfig{Interpreter: &echoInterpreter{}}, ErrMissingInvoker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRun_GroupsStepIDsAndContext(t *testing.T) {
	e := mustExecutor(t, &echoInterpreter{}, newFakeInvoker())
	plan := models.NewPlan([]string{
		"price flooring",
		"price ceiling",
		"compare step 1 and step 2",
	})

	rep, err := e.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantGroups := []models.Group{{0, 1}, {2}}
	if !reflect.DeepEqual(rep.Groups, wantGroups) {
		t.Errorf("Groups = %v, want %v", rep.Groups, wantGroups)
	}

	wantIDs := []string{"group_0_step_0", "group_0_step_1", "group_1"}
	for i, r := range rep.Results {
		if r.StepID != wantIDs[i] {
			t.Errorf("Results[%d].StepID = %q, want %q", i, r.StepID, wantIDs[i])
		}
		if r.Subtask != plan[i].Text {
			t.Errorf("Results[%d].Subtask = %q, want %q", i, r.Subtask, plan[i].Text)
		}
		if !r.Success {
			t.Errorf("Results[%d] failed: %v", i, r.Error)
		}
	}

	if got := rep.Context["step_group_0_step_1"]; got != "quote for price ceiling" {
		t.Errorf("Context[step_group_0_step_1] = %v", got)
	}
	if got := rep.Context["step_group_1_subtask"]; got != "compare step 1 and step 2" {
		t.Errorf("Context[step_group_1_subtask] = %v", got)
	}
	if rep.RunID == "" {
		t.Error("RunID should be set")
	}
	if rep.Summary != (Summary{Succeeded: 3}) {
		t.Errorf("Summary = %+v", rep.Summary)
	}
}

func TestRun_LaterGroupsSeeEarlierContext(t *testing.T) {
	in := &echoInterpreter{}
	e := mustExecutor(t, in, newFakeInvoker())

	_, err := e.Run(context.Background(), models.NewPlan([]string{"price floor", "then summarize"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(in.shared["price floor"]) != 0 {
		t.Errorf("first group saw context %v, want empty", in.shared["price floor"])
	}
	shared := in.shared["then summarize"]
	if shared["step_group_0"] != "quote for price floor" {
		t.Errorf("second group context = %v", shared)
	}
	if shared["step_group_0_subtask"] != "price floor" {
		t.Errorf("second group subtask key = %v", shared["step_group_0_subtask"])
	}
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	in := &echoInterpreter{failFor: "gibberish"}
	e := mustExecutor(t, in, newFakeInvoker())
	plan := models.NewPlan([]string{
		"price floor",
		"teleport: the sofa",
		"broken: walls",
		"gibberish",
		"price ceiling",
	})

	rep, err := e.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantKinds := []models.ErrorKind{
		"",
		models.ErrorKindUnknownTool,
		models.ErrorKindToolExecution,
		models.ErrorKindInterpretation,
		"",
	}
	for i, want := range wantKinds {
		r := rep.Results[i]
		if want == "" {
			if !r.Success {
				t.Errorf("Results[%d] failed: %v", i, r.Error)
			}
			continue
		}
		if r.Success || r.Error == nil || r.Error.Kind != want {
			t.Errorf("Results[%d].Error = %v, want kind %s", i, r.Error, want)
		}
	}

	if rep.Summary.Succeeded != 2 || rep.Summary.Failed != 3 {
		t.Errorf("Summary = %+v, want 2 succeeded, 3 failed", rep.Summary)
	}

	errs := rep.Errors()
	if len(errs) != 3 {
		t.Fatalf("Errors() len = %d, want 3", len(errs))
	}
	var stepErr *StepError
	if !errors.As(errs[0], &stepErr) || stepErr.Index != 1 {
		t.Errorf("Errors()[0] = %v, want step index 1", errs[0])
	}
	if _, ok := rep.Context["step_group_0_step_1"].(*models.TaskError); !ok {
		t.Errorf("failed step context = %T, want *models.TaskError", rep.Context["step_group_0_step_1"])
	}
}

func TestRun_WarmCacheIsIdempotent(t *testing.T) {
	in := &echoInterpreter{}
	inv := newFakeInvoker()
	qc := cache.NewTurn()
	e := mustExecutor(t, in, inv, WithCache(qc))
	plan := models.NewPlan([]string{"price floor", "price walls", "broken: ceiling", "then summarize"})

	first, err := e.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	invocations := inv.calls.Load()
	interpretations := in.calls

	second, err := e.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if got := inv.calls.Load(); got != invocations {
		t.Errorf("tool invocations = %d after warm run, want %d", got, invocations)
	}
	if in.calls != interpretations {
		t.Errorf("interpreter calls = %d after warm run, want %d", in.calls, interpretations)
	}
	for i := range plan {
		if !reflect.DeepEqual(first.Results[i], second.Results[i]) {
			t.Errorf("Results[%d] differ:\nfirst  %+v\nsecond %+v", i, first.Results[i], second.Results[i])
		}
		if !second.Cached[i] {
			t.Errorf("Cached[%d] = false on warm run", i)
		}
	}
	if second.Summary.CacheHits != len(plan) {
		t.Errorf("CacheHits = %d, want %d", second.Summary.CacheHits, len(plan))
	}
}

func TestRun_DuplicateTextExecutesOnce(t *testing.T) {
	inv := newFakeInvoker()
	e := mustExecutor(t, &echoInterpreter{}, inv)

	rep, err := e.Run(context.Background(), models.NewPlan([]string{"price floor", "price floor"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := inv.calls.Load(); got != 1 {
		t.Errorf("tool invocations = %d, want 1", got)
	}
	if rep.Results[0].Payload != rep.Results[1].Payload {
		t.Errorf("payloads differ: %v vs %v", rep.Results[0].Payload, rep.Results[1].Payload)
	}
	if rep.Summary.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", rep.Summary.CacheHits)
	}
}

func TestRun_RecentWindow(t *testing.T) {
	in := &echoInterpreter{}
	e := mustExecutor(t, in, newFakeInvoker())

	_, err := e.Run(context.Background(), models.NewPlan([]string{
		"price a", "then price b", "then price c", "then price d", "then price e",
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tests := []struct {
		text string
		want []string
	}{
		{"price a", nil},
		{"then price c", []string{"price a", "then price b"}},
		{"then price e", []string{"then price b", "then price c", "then price d"}},
	}
	for _, tt := range tests {
		if got := in.recent[tt.text]; !reflect.DeepEqual(got, tt.want) {
			t.Errorf("recent(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestRun_MaxParallel(t *testing.T) {
	var running, peak atomic.Int64
	inv := newFakeInvoker()
	inv.tools["price"] = func(context.Context, map[string]any) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return "ok", nil
	}
	e := mustExecutor(t, &echoInterpreter{}, inv, WithMaxParallel(2))

	texts := make([]string, 6)
	for i := range texts {
		texts[i] = fmt.Sprintf("price item %d", i)
	}
	rep, err := e.Run(context.Background(), models.NewPlan(texts))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rep.Groups) != 1 {
		t.Fatalf("Groups = %v, want one group", rep.Groups)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestRun_SubtaskTimeout(t *testing.T) {
	inv := newFakeInvoker()
	inv.tools["slow"] = func(ctx context.Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	qc := cache.NewTurn()
	e := mustExecutor(t, &echoInterpreter{}, inv, WithCache(qc), WithSubtaskTimeout(20*time.Millisecond))

	rep, err := e.Run(context.Background(), models.NewPlan([]string{"slow: floor", "price ceiling"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r := rep.Results[0]; r.Success || r.Error.Kind != models.ErrorKindTimeout {
		t.Errorf("Results[0] = %+v, want timeout", r)
	}
	if !rep.Results[1].Success {
		t.Errorf("Results[1] failed: %v", rep.Results[1].Error)
	}
	if _, ok := qc.Get(context.Background(), "slow: floor"); ok {
		t.Error("timed-out result should not be cached")
	}
}

func TestRun_SubtaskTimeoutAbandonsStuckTool(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	inv := newFakeInvoker()
	inv.tools["stuck"] = func(context.Context, map[string]any) (any, error) {
		<-release
		return "late", nil
	}
	e := mustExecutor(t, &echoInterpreter{}, inv, WithSubtaskTimeout(20*time.Millisecond))

	start := time.Now()
	rep, err := e.Run(context.Background(), models.NewPlan([]string{"stuck: floor"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run() took %v, want prompt return", elapsed)
	}
	if rep.Results[0].Error == nil || rep.Results[0].Error.Kind != models.ErrorKindTimeout {
		t.Errorf("Results[0] = %+v, want timeout", rep.Results[0])
	}
}

func TestRun_CanceledStopsLaterGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	inv := newFakeInvoker()
	inv.tools["block"] = func(ctx context.Context, _ map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	e := mustExecutor(t, &echoInterpreter{}, inv)

	go func() {
		<-started
		cancel()
	}()

	rep, err := e.Run(ctx, models.NewPlan([]string{"block: floor", "then price ceiling"}))
	if !errors.Is(err, ErrRunAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want ErrRunAborted wrapping context.Canceled", err)
	}
	if rep == nil {
		t.Fatal("Run() should return a partial report")
	}
	for i, r := range rep.Results {
		if r.Success || r.Error == nil || r.Error.Kind != models.ErrorKindCanceled {
			t.Errorf("Results[%d] = %+v, want canceled", i, r)
		}
	}
	if got := inv.calls.Load(); got != 1 {
		t.Errorf("tool invocations = %d, want 1", got)
	}
}

func TestRun_RunTimeout(t *testing.T) {
	inv := newFakeInvoker()
	inv.tools["slow"] = func(ctx context.Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	e := mustExecutor(t, &echoInterpreter{}, inv,
		WithRunTimeout(50*time.Millisecond),
		WithSubtaskTimeout(time.Minute),
	)

	plan := models.NewPlan([]string{"price floor", "slow: ceiling", "then compare step 1"})
	rep, err := e.Run(context.Background(), plan)
	if !errors.Is(err, ErrRunAborted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want ErrRunAborted wrapping context.DeadlineExceeded", err)
	}
	if rep == nil {
		t.Fatal("Run() should return a partial report")
	}

	if !rep.Results[0].Success {
		t.Errorf("Results[0] failed: %v", rep.Results[0].Error)
	}
	if r := rep.Results[1]; r.Success || r.Error == nil || r.Error.Kind != models.ErrorKindTimeout {
		t.Errorf("Results[1] = %+v, want timeout", r)
	}
	r := rep.Results[2]
	if r.Success || r.Error == nil || r.Error.Kind != models.ErrorKindTimeout {
		t.Fatalf("Results[2] = %+v, want timeout", r)
	}
	if !strings.HasPrefix(r.Error.Message, "not started") {
		t.Errorf("Results[2] message = %q, want not started", r.Error.Message)
	}
	if got := inv.calls.Load(); got != 2 {
		t.Errorf("tool invocations = %d, want 2", got)
	}
}

const optimizerCatalog = `
Flooring:
  Wood Flooring:
    Laminate:
      Basic: {material: 250000, labor: 50000}
    Engineered:
      Oak: {material: 350000, labor: 70000}
Ceiling:
  Gypsum:
    Flat:
      Standard: {material: 120000, labor: 30000}
`

type budgetInterpreter struct {
	args map[string]any
}

func (b budgetInterpreter) Interpret(context.Context, string, map[string]any, []models.TaskResult) (ToolCall, error) {
	return ToolCall{Name: optimizer.ToolName, Args: b.args}, nil
}

func TestRun_OptimizerDelegation(t *testing.T) {
	tree, err := catalog.Parse([]byte(optimizerCatalog))
	if err != nil {
		t.Fatalf("catalog.Parse() error = %v", err)
	}
	opt := optimizer.New(tree)

	surfaces := []any{
		map[string]any{"position": "floor", "category": "Flooring", "material_type": "Wood Flooring", "area": 30},
		map[string]any{"position": "ceiling", "category": "Ceiling", "area": "30m2"},
	}

	tests := []struct {
		name      string
		args      map[string]any
		opts      []Option
		wantKind  models.ErrorKind
		wantTotal int64
	}{
		{
			name:      "handled in process",
			args:      map[string]any{"budget": "20 triệu", "surfaces": surfaces},
			opts:      []Option{WithOptimizer(opt)},
			wantTotal: 17_100_000,
		},
		{
			name: "missing path",
			args: map[string]any{"budget": 20_000_000, "surfaces": []any{
				map[string]any{"position": "floor", "category": "Carpet", "area": 30},
			}},
			opts:     []Option{WithOptimizer(opt)},
			wantKind: models.ErrorKindCatalogPathNotFound,
		},
		{
			name:     "bad arguments",
			args:     map[string]any{"budget": "lots", "surfaces": surfaces},
			opts:     []Option{WithOptimizer(opt)},
			wantKind: models.ErrorKindToolExecution,
		},
		{
			name:     "no optimizer configured",
			args:     map[string]any{"budget": 20_000_000, "surfaces": surfaces},
			wantKind: models.ErrorKindUnknownTool,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			opts := append([]Option{WithOptimizationSink(sink)}, tt.opts...)
			e := mustExecutor(t, budgetInterpreter{args: tt.args}, newFakeInvoker(), opts...)

			rep, err := e.Run(context.Background(), models.NewPlan([]string{"propose options for 20 million"}))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			r := rep.Results[0]

			if tt.wantKind != "" {
				if r.Success || r.Error.Kind != tt.wantKind {
					t.Errorf("result = %+v, want kind %s", r, tt.wantKind)
				}
				if len(rep.Optimizations) != 0 {
					t.Errorf("Optimizations = %d, want 0", len(rep.Optimizations))
				}
				return
			}

			if !r.Success {
				t.Fatalf("result failed: %v", r.Error)
			}
			got, ok := r.Payload.(models.OptimizationResult)
			if !ok {
				t.Fatalf("Payload = %T, want models.OptimizationResult", r.Payload)
			}
			if !got.TotalCost.Equal(decimal.NewFromInt(tt.wantTotal)) {
				t.Errorf("TotalCost = %s, want %d", got.TotalCost, tt.wantTotal)
			}
			if len(rep.Optimizations) != 1 || len(sink.optimizations) != 1 {
				t.Errorf("Optimizations = %d, sink = %d, want 1 each", len(rep.Optimizations), len(sink.optimizations))
			}
		})
	}
}

func TestRun_QuoteSinkSkipsCachedAndFailed(t *testing.T) {
	sink := &recordingSink{}
	e := mustExecutor(t, &echoInterpreter{}, newFakeInvoker(), WithCache(cache.NewTurn()), WithQuoteSink(sink))
	plan := models.NewPlan([]string{"price floor", "broken: walls"})

	for i := 0; i < 2; i++ {
		if _, err := e.Run(context.Background(), plan); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	if len(sink.quotes) != 1 {
		t.Fatalf("saved quotes = %d, want 1", len(sink.quotes))
	}
	if sink.quotes[0].Subtask != "price floor" {
		t.Errorf("saved quote = %q, want %q", sink.quotes[0].Subtask, "price floor")
	}
}

func TestRun_ProgressEvents(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	e := mustExecutor(t, &echoInterpreter{}, newFakeInvoker(), WithProgress(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}))

	plan := models.NewPlan([]string{"price flooring", "price ceiling", "compare step 1 and step 2"})
	rep, err := e.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(events) != 8 {
		t.Fatalf("got %d events, want 8", len(events))
	}
	if events[0].Kind != EventRunStarted || len(events[0].Groups) != 2 {
		t.Errorf("first event = %+v, want run_started with 2 groups", events[0])
	}
	last := events[len(events)-1]
	if last.Kind != EventRunFinished || last.Summary == nil || last.Summary.Succeeded != 3 {
		t.Errorf("last event = %+v, want run_finished with 3 successes", last)
	}

	started := map[string]bool{}
	for _, ev := range events[1 : len(events)-1] {
		if ev.RunID != rep.RunID {
			t.Errorf("event run id = %q, want %q", ev.RunID, rep.RunID)
		}
		switch ev.Kind {
		case EventStepStarted:
			started[ev.StepID] = true
		case EventStepFinished:
			if !started[ev.StepID] {
				t.Errorf("step %s finished before it started", ev.StepID)
			}
			if ev.Result == nil || !ev.Result.Success {
				t.Errorf("step %s result = %+v, want success", ev.StepID, ev.Result)
			}
		default:
			t.Errorf("unexpected event kind %q", ev.Kind)
		}
	}
}

func TestRun_EmptyPlan(t *testing.T) {
	e := mustExecutor(t, &echoInterpreter{}, newFakeInvoker())

	rep, err := e.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rep.Results) != 0 || len(rep.Groups) != 0 {
		t.Errorf("report = %+v, want empty", rep)
	}
}

func TestStepID(t *testing.T) {
	tests := []struct {
		g, k, size int
		want       string
	}{
		{0, 0, 1, "group_0"},
		{2, 0, 1, "group_2"},
		{0, 1, 3, "group_0_step_1"},
	}
	for _, tt := range tests {
		if got := StepID(tt.g, tt.k, tt.size); got != tt.want {
			t.Errorf("StepID(%d, %d, %d) = %q, want %q", tt.g, tt.k, tt.size, got, tt.want)
		}
	}
}
