package optimizer

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"20000000", 20_000_000, false},
		{"20,000,000", 20_000_000, false},
		{"20.000.000", 20_000_000, false},
		{"300 triệu", 300_000_000, false},
		{"1.5 tỷ", 1_500_000_000, false},
		{"2,5 triệu", 2_500_000, false},
		{"50 nghìn", 50_000, false},
		{"50k", 50_000, false},
		{"20tr", 20_000_000, false},
		{"3 million", 3_000_000, false},
		{"20.000.000 VND", 20_000_000, false},
		{"500.000đ", 500_000, false},
		{"", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBudget) {
					t.Errorf("error = %v, want ErrInvalidBudget", err)
				}
				return
			}
			if !got.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRequest(t *testing.T) {
	t.Run("surface list", func(t *testing.T) {
		req, err := ParseRequest(map[string]any{
			"budget": 20000000,
			"surfaces": []any{
				map[string]any{"position": "floor", "category": "Flooring", "material_type": "Wood Flooring", "area": 30},
				map[string]any{"position": "ceiling", "path": []any{"Ceiling", "Gypsum"}, "area": "30m2"},
			},
		}, DefaultRoomCategories)
		if err != nil {
			t.Fatalf("ParseRequest() error = %v", err)
		}
		if !req.Budget.Equal(decimal.NewFromInt(20_000_000)) {
			t.Errorf("Budget = %s", req.Budget)
		}
		if len(req.Surfaces) != 2 {
			t.Fatalf("len(Surfaces) = %d, want 2", len(req.Surfaces))
		}
		if req.Surfaces[0].MaterialType != "Wood Flooring" || req.Surfaces[0].Area != 30 {
			t.Errorf("Surfaces[0] = %+v", req.Surfaces[0])
		}
		if req.Surfaces[1].Category != "Ceiling" || req.Surfaces[1].MaterialType != "Gypsum" || req.Surfaces[1].Area != 30 {
			t.Errorf("Surfaces[1] = %+v", req.Surfaces[1])
		}
	})

	t.Run("surface map sorted by position", func(t *testing.T) {
		req, err := ParseRequest(map[string]any{
			"budget": "300 triệu",
			"surfaces": map[string]any{
				"trần": map[string]any{"path": []any{"Trần"}, "area": "24"},
				"sàn":  map[string]any{"path": []any{"Sàn"}, "area": 24.5},
			},
		}, DefaultRoomCategories)
		if err != nil {
			t.Fatalf("ParseRequest() error = %v", err)
		}
		if !req.Budget.Equal(decimal.NewFromInt(300_000_000)) {
			t.Errorf("Budget = %s", req.Budget)
		}
		if len(req.Surfaces) != 2 || req.Surfaces[0].Position != "sàn" || req.Surfaces[1].Position != "trần" {
			t.Fatalf("Surfaces = %+v", req.Surfaces)
		}
		if req.Surfaces[0].Area != 24.5 || req.Surfaces[1].Area != 24 {
			t.Errorf("areas = %v, %v", req.Surfaces[0].Area, req.Surfaces[1].Area)
		}
	})

	t.Run("room size", func(t *testing.T) {
		req, err := ParseRequest(map[string]any{"budget": 1000, "room_size": "5x10x3"}, DefaultRoomCategories)
		if err != nil {
			t.Fatalf("ParseRequest() error = %v", err)
		}
		if len(req.Surfaces) != 6 {
			t.Errorf("len(Surfaces) = %d, want 6", len(req.Surfaces))
		}
	})

	t.Run("bad surfaces type", func(t *testing.T) {
		_, err := ParseRequest(map[string]any{"budget": 1, "surfaces": "floor"}, DefaultRoomCategories)
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad budget", func(t *testing.T) {
		_, err := ParseRequest(map[string]any{"budget": "plenty"}, DefaultRoomCategories)
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestRoomSurfaces(t *testing.T) {
	surfaces, err := RoomSurfaces("5 x 10 x 3", DefaultRoomCategories)
	if err != nil {
		t.Fatalf("RoomSurfaces() error = %v", err)
	}

	want := []struct {
		position string
		category string
		area     float64
	}{
		{"floor", "Sàn", 50},
		{"ceiling", "Trần", 50},
		{"wall 1", "Tường và vách", 15},
		{"wall 2", "Tường và vách", 15},
		{"wall 3", "Tường và vách", 30},
		{"wall 4", "Tường và vách", 30},
	}
	if len(surfaces) != len(want) {
		t.Fatalf("len = %d, want %d", len(surfaces), len(want))
	}
	for i, w := range want {
		s := surfaces[i]
		if s.Position != w.position || s.Category != w.category || s.Area != w.area {
			t.Errorf("surfaces[%d] = %+v, want %+v", i, s, w)
		}
	}

	t.Run("skips empty categories", func(t *testing.T) {
		got, err := RoomSurfaces("2x2x2", RoomCategories{Floor: "Floor"})
		if err != nil || len(got) != 1 {
			t.Errorf("RoomSurfaces() = %v, %v", got, err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := RoomSurfaces("big room", DefaultRoomCategories); !errors.Is(err, ErrInvalidSurface) {
			t.Errorf("error = %v, want ErrInvalidSurface", err)
		}
	})
}
