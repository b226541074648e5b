package game

import "strings"

// Point is a map coordinate.
type Point struct {
	X, Y int
}

// KnownLocations maps well-known place names to their tiles.
var KnownLocations = map[string]Point{
	"bank":                 {4, 1},
	"grand_exchange":       {5, 1},
	"taskmaster":           {1, 2},
	"taskmaster_items":     {4, 13},
	"weaponcrafting":       {2, 1},
	"gearcrafting":         {3, 1},
	"jewelrycrafting":      {1, 3},
	"cooking":              {1, 1},
	"woodcutting":          {-2, -3},
	"mining":               {1, 5},
	"alchemy":              {2, 3},
	"copper_rocks":         {2, 0},
	"iron_rocks":           {1, 7},
	"ash_tree":             {-1, 0},
	"spruce_tree":          {2, 6},
	"gudgeon_fishing_spot": {4, 2},
	"shrimp_fishing_spot":  {5, 2},
	"sunflower_field":      {2, 2},
	"chicken":              {0, 1},
	"cow":                  {0, 2},
	"green_slime":          {0, -1},
	"yellow_slime":         {1, -2},
}

// LookupLocation finds a known place by name, ignoring case.
func LookupLocation(name string) (Point, bool) {
	p, ok := KnownLocations[strings.ToLower(name)]
	return p, ok
}
