package state

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

var (
	_ executor.QuoteSink        = (*DB)(nil)
	_ executor.OptimizationSink = (*DB)(nil)
)

func TestQuotes_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := models.TaskResult{
		Subtask:     "price oak flooring",
		StepID:      "group_0",
		ToolName:    "get_internal_price",
		Args:        map[string]any{"category": "Flooring"},
		Success:     true,
		Payload:     map[string]any{"total": "420000"},
		CompletedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := db.SaveQuote(ctx, first); err != nil {
		t.Fatalf("SaveQuote() error = %v", err)
	}

	second := first
	second.ToolName = "search_materials"
	if err := db.SaveQuote(ctx, second); err != nil {
		t.Fatalf("second SaveQuote() error = %v", err)
	}

	got, ok, err := db.GetQuote(ctx, first.Subtask)
	if err != nil || !ok {
		t.Fatalf("GetQuote() = %v, %v", ok, err)
	}
	if got.ToolName != first.ToolName {
		t.Errorf("ToolName = %q, want first insert %q", got.ToolName, first.ToolName)
	}
	if got.StepID != first.StepID || !got.CompletedAt.Equal(first.CompletedAt) {
		t.Errorf("GetQuote() = %+v, want %+v", got, first)
	}
	if payload, _ := got.Payload.(map[string]any); payload["total"] != "420000" {
		t.Errorf("Payload = %v", got.Payload)
	}

	if _, ok, err := db.GetQuote(ctx, "missing"); ok || err != nil {
		t.Errorf("GetQuote(missing) = %v, %v, want false, nil", ok, err)
	}
}

func TestQuotes_FailureRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	failed := models.Failed("teleport the sofa", models.ErrorKindUnknownTool, "no such tool")
	if err := db.SaveQuote(ctx, failed); err != nil {
		t.Fatalf("SaveQuote() error = %v", err)
	}
	got, ok, err := db.GetQuote(ctx, failed.Subtask)
	if err != nil || !ok {
		t.Fatalf("GetQuote() = %v, %v", ok, err)
	}
	if got.Success || got.Error == nil || got.Error.Kind != models.ErrorKindUnknownTool {
		t.Errorf("GetQuote() = %+v, want unknown_tool failure", got)
	}
}

func TestQuotes_ListAndPurge(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	old := models.TaskResult{Subtask: "old", Success: true, CompletedAt: time.Now().Add(-48 * time.Hour)}
	recent := models.TaskResult{Subtask: "recent", Success: true, CompletedAt: time.Now()}
	for _, r := range []models.TaskResult{recent, old} {
		if err := db.SaveQuote(ctx, r); err != nil {
			t.Fatalf("SaveQuote() error = %v", err)
		}
	}

	quotes, err := db.ListQuotes(ctx)
	if err != nil {
		t.Fatalf("ListQuotes() error = %v", err)
	}
	if len(quotes) != 2 || quotes[0].Subtask != "old" {
		t.Errorf("ListQuotes() = %v, want old first", quotes)
	}

	n, err := db.PurgeQuotes(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeQuotes() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeQuotes() = %d, want 1", n)
	}
	if _, ok, _ := db.GetQuote(ctx, "old"); ok {
		t.Error("old quote should be purged")
	}
	if _, ok, _ := db.GetQuote(ctx, "recent"); !ok {
		t.Error("recent quote should remain")
	}
}

func TestQuotes_BackPersistentCache(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	warm, err := cache.New(cache.Policy{Scope: cache.ScopePersistent}, cache.WithStore(db))
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	if _, err := warm.Put(ctx, models.TaskResult{Subtask: "price ceiling", Success: true, Payload: "150000"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	cold, err := cache.New(cache.Policy{Scope: cache.ScopePersistent}, cache.WithStore(db))
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	got, ok := cold.Get(ctx, "price ceiling")
	if !ok {
		t.Fatal("Get() missed a quote written by another cache")
	}
	if got.Payload != "150000" {
		t.Errorf("Payload = %v, want 150000", got.Payload)
	}
}

func TestOptimizations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := models.OptimizationResult{
		ID: "opt-1",
		Assignments: []models.SurfaceCost{{
			Surface: models.Surface{Position: "floor", Category: "Flooring", Area: 30},
			Variant: models.CatalogVariant{
				Path:         []string{"Flooring", "Wood Flooring", "Engineered", "Oak"},
				UnitMaterial: decimal.NewFromInt(350000),
				UnitLabor:    decimal.NewFromInt(70000),
				Complete:     true,
			},
			Cost: decimal.NewFromInt(12_600_000),
		}},
		TotalCost:    decimal.NewFromInt(12_600_000),
		Budget:       decimal.NewFromInt(20_000_000),
		Status:       models.BudgetWithin,
		Combinations: 3,
		Strategy:     models.StrategyExhaustive,
	}
	if err := db.SaveOptimization(ctx, r); err != nil {
		t.Fatalf("SaveOptimization() error = %v", err)
	}
	if err := db.SaveOptimization(ctx, models.OptimizationResult{}); err == nil {
		t.Error("SaveOptimization() without ID should fail")
	}

	got, ok, err := db.GetOptimization(ctx, "opt-1")
	if err != nil || !ok {
		t.Fatalf("GetOptimization() = %v, %v", ok, err)
	}
	if !got.TotalCost.Equal(r.TotalCost) || got.Status != r.Status {
		t.Errorf("GetOptimization() = %+v, want %+v", got, r)
	}
	if got.Assignments[0].Variant.PathString() != "Flooring > Wood Flooring > Engineered > Oak" {
		t.Errorf("variant = %q", got.Assignments[0].Variant.PathString())
	}

	list, err := db.ListOptimizations(ctx, 0)
	if err != nil {
		t.Fatalf("ListOptimizations() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListOptimizations() len = %d, want 1", len(list))
	}
}

func TestProjectQuotes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, project := range []string{"villa", "flat", "villa"} {
		if _, err := db.SaveProjectQuote(ctx, project, "quote for "+project); err != nil {
			t.Fatalf("SaveProjectQuote() error = %v", err)
		}
	}

	tests := []struct {
		project string
		want    int
	}{
		{"villa", 2},
		{"flat", 1},
		{"", 3},
		{"none", 0},
	}
	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			got, err := db.ListProjectQuotes(ctx, tt.project)
			if err != nil {
				t.Fatalf("ListProjectQuotes() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("ListProjectQuotes(%q) len = %d, want %d", tt.project, len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].ID < got[i].ID {
					t.Errorf("quotes not newest first: %d before %d", got[i-1].ID, got[i].ID)
				}
			}
		})
	}
}
