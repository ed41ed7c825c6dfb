package optimizer

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// RoomCategories names the catalog category used for each room surface.
type RoomCategories struct {
	Floor   string `mapstructure:"floor"`
	Ceiling string `mapstructure:"ceiling"`
	Walls   string `mapstructure:"walls"`
}

// DefaultRoomCategories matches the category names of the bundled catalog.
var DefaultRoomCategories = RoomCategories{
	Floor:   "Sàn",
	Ceiling: "Trần",
	Walls:   "Tường và vách",
}

var roomSizePattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*[xX×]\s*(\d+(?:\.\d+)?)\s*[xX×]\s*(\d+(?:\.\d+)?)`)

// RoomSurfaces turns a "LxWxH" room size into floor, ceiling and four wall
// surfaces. Walls come in two pairs: length by height and width by height.
// Surfaces whose category is empty are left out.
func RoomSurfaces(size string, cats RoomCategories) ([]models.Surface, error) {
	m := roomSizePattern.FindStringSubmatch(size)
	if m == nil {
		return nil, fmt.Errorf("%w: room size %q, expected LxWxH", ErrInvalidSurface, size)
	}
	var dims [3]float64
	for i := range dims {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: room size %q: %v", ErrInvalidSurface, size, err)
		}
		dims[i] = v
	}
	length, width, height := dims[0], dims[1], dims[2]

	candidates := []models.Surface{
		{Position: "floor", Category: cats.Floor, Area: length * width},
		{Position: "ceiling", Category: cats.Ceiling, Area: length * width},
		{Position: "wall 1", Category: cats.Walls, Area: length * height},
		{Position: "wall 2", Category: cats.Walls, Area: length * height},
		{Position: "wall 3", Category: cats.Walls, Area: width * height},
		{Position: "wall 4", Category: cats.Walls, Area: width * height},
	}

	var surfaces []models.Surface
	for _, s := range candidates {
		if s.Category != "" {
			surfaces = append(surfaces, s)
		}
	}
	if len(surfaces) == 0 {
		return nil, ErrNoSurfaces
	}
	return surfaces, nil
}
