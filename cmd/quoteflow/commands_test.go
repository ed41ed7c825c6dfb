package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// executeCommand runs the root command against an isolated config home and
// returns what it printed.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("QUOTEFLOW_INTERPRETER_MODE", "rules")
	t.Setenv("QUOTEFLOW_STATE_DB_PATH", filepath.Join(home, "state.db"))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestGroupCommand(t *testing.T) {
	plan := writePlanFile(t, "plan.txt", `Tra cứu giá nội bộ cho Sàn - Sàn gỗ
Tra cứu giá nội bộ cho Trần - Trần thạch cao
So sánh kết quả bước 1 với bước 2
`)

	out, err := executeCommand(t, "group", plan, "--json")
	if err != nil {
		t.Fatalf("group failed: %v\n%s", err, out)
	}

	var groups []models.Group
	if err := json.Unmarshal([]byte(out), &groups); err != nil {
		t.Fatalf("group output is not JSON: %v\n%s", err, out)
	}
	want := []models.Group{{0, 1}, {2}}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("groups = %v, want %v", groups, want)
	}
}

func TestRunCommand(t *testing.T) {
	plan := writePlanFile(t, "plan.txt", `Tra cứu giá nội bộ cho Sàn - Sàn gỗ - Gỗ công nghiệp
Đề xuất phương án vật liệu phù hợp với ngân sách 20 triệu cho sàn (Sàn - Sàn gỗ, 24m2)
`)

	out, err := executeCommand(t, "run", plan, "--json", "--no-save")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	var rep struct {
		Summary       executor.Summary            `json:"summary"`
		Optimizations []models.OptimizationResult `json:"optimizations"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("run output is not JSON: %v\n%s", err, out)
	}
	if rep.Summary.Succeeded != 2 || rep.Summary.Failed != 0 {
		t.Errorf("summary = %+v, want 2 succeeded", rep.Summary)
	}
	if len(rep.Optimizations) != 1 {
		t.Fatalf("expected 1 optimization, got %d", len(rep.Optimizations))
	}
	opt := rep.Optimizations[0]
	if !opt.TotalCost.Equal(decimal.NewFromInt(9120000)) {
		t.Errorf("total cost = %s, want 9120000", opt.TotalCost)
	}
	if opt.Status != models.BudgetWithin {
		t.Errorf("status = %s, want %s", opt.Status, models.BudgetWithin)
	}
}

func TestCatalogCommand(t *testing.T) {
	out, err := executeCommand(t, "catalog", "Trần - Trần thạch cao - Phẳng - Khung thường", "--json")
	if err != nil {
		t.Fatalf("catalog failed: %v\n%s", err, out)
	}

	var v models.CatalogVariant
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("catalog output is not JSON: %v\n%s", err, out)
	}
	if !v.UnitTotal().Equal(decimal.NewFromInt(160000)) {
		t.Errorf("unit total = %s, want 160000", v.UnitTotal())
	}

	if _, err := executeCommand(t, "catalog", "Mái"); err == nil {
		t.Error("expected an error for an unknown catalog path")
	}
}
