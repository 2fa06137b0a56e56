// Package layout places marginalia beside the text of a page.
package layout

import (
	"math"
	"sort"

	"github.com/local/marginalia/internal/models"
)

const (
	leftMarginX  = 5.0
	rightMarginX = 85.0

	// itemHeight is the approximate marginalia height in percent of the page.
	itemHeight = 8.0
	gap        = 2.0
	pushBuffer = 3.0
	minY       = 5.0
	maxBottom  = 95.0
)

var baseY = []float64{15, 35, 55, 75}

const (
	SideLeft  = "left"
	SideRight = "right"
)

// Position is a marginalia placement in percent of the page.
type Position struct {
	X    float64
	Y    float64
	Side string
}

// Place returns the position of the index-th marginalia on a page with the given blocks.
func Place(blocks []models.TextBlock, index int) Position {
	if len(blocks) == 0 {
		return Position{X: rightMarginX, Y: 20, Side: SideRight}
	}

	occupied := make([][2]float64, 0, len(blocks))
	minX := math.Inf(1)
	maxX := 0.0
	for _, b := range blocks {
		r := b.RelativePosition
		occupied = append(occupied, [2]float64{r.Y, r.Y + r.Height})
		minX = math.Min(minX, r.X)
		maxX = math.Max(maxX, r.X+r.Width)
	}

	useLeft := minX > 25
	useRight := maxX < 75

	pos := Position{X: rightMarginX, Side: SideRight}
	if useLeft && (index%2 == 0 || !useRight) {
		pos = Position{X: leftMarginX, Side: SideLeft}
	}
	pos.Y = availableY(occupied, index)
	return pos
}

// availableY walks the occupied spans top to bottom and pushes the
// staggered start below every span it would overlap.
func availableY(occupied [][2]float64, index int) float64 {
	sort.Slice(occupied, func(i, j int) bool {
		if occupied[i][0] != occupied[j][0] {
			return occupied[i][0] < occupied[j][0]
		}
		return occupied[i][1] < occupied[j][1]
	})

	y := baseY[((index%len(baseY))+len(baseY))%len(baseY)]
	for _, span := range occupied {
		if y < span[1]+gap && y+itemHeight > span[0]-gap {
			y = span[1] + pushBuffer
		}
	}
	if y+itemHeight > maxBottom {
		y = maxBottom - itemHeight
	}
	return math.Max(minY, y)
}
