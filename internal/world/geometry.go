package world

import "strings"

// Direction is one of the eight compass steps on the tile grid.
type Direction uint8

const (
	DirNone Direction = iota
	North
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var dirDeltas = [...][2]int32{
	DirNone:   {0, 0},
	North:     {0, -1},
	NorthEast: {1, -1},
	East:      {1, 0},
	SouthEast: {1, 1},
	South:     {0, 1},
	SouthWest: {-1, 1},
	West:      {-1, 0},
	NorthWest: {-1, -1},
}

var dirNames = [...]string{
	DirNone:   "none",
	North:     "north",
	NorthEast: "northeast",
	East:      "east",
	SouthEast: "southeast",
	South:     "south",
	SouthWest: "southwest",
	West:      "west",
	NorthWest: "northwest",
}

// Delta returns the tile offset for one step in d.
func (d Direction) Delta() (dx, dy int32) {
	if int(d) >= len(dirDeltas) {
		return 0, 0
	}
	return dirDeltas[d][0], dirDeltas[d][1]
}

func (d Direction) String() string {
	if int(d) >= len(dirNames) {
		return "none"
	}
	return dirNames[d]
}

// ParseDirection accepts compass names ("north", "ne", "south_west", ...).
func ParseDirection(s string) Direction {
	s = strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
	switch s {
	case "n", "north":
		return North
	case "ne", "northeast":
		return NorthEast
	case "e", "east":
		return East
	case "se", "southeast":
		return SouthEast
	case "s", "south":
		return South
	case "sw", "southwest":
		return SouthWest
	case "w", "west":
		return West
	case "nw", "northwest":
		return NorthWest
	}
	return DirNone
}

// StepToward returns the direction of the first grid step from (x,y) toward (tx,ty).
func StepToward(x, y, tx, ty int32) Direction {
	dx, dy := sign(tx-x), sign(ty-y)
	for d := North; d <= NorthWest; d++ {
		if dirDeltas[d][0] == dx && dirDeltas[d][1] == dy {
			return d
		}
	}
	return DirNone
}

// Chebyshev is the grid distance where diagonal steps cost one.
func Chebyshev(x1, y1, x2, y2 int32) int32 {
	dx, dy := abs32(x1-x2), abs32(y1-y2)
	if dx > dy {
		return dx
	}
	return dy
}

func sign(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
