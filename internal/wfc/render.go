package wfc

import (
	"strconv"
	"strings"
)

// Glyphs used by RenderASCII for cells without a single tile
const (
	GlyphOpen          = '?'
	GlyphContradiction = '!'
)

// RenderASCII draws the solution one character per cell. Solved cells use
// their glyph from the map, or the last digit of the identifier when none is
// given. Open cells print GlyphOpen and contradictions GlyphContradiction.
func RenderASCII(sol *Solution, glyphs map[int]rune) string {
	var b strings.Builder
	b.Grow((sol.width + 1) * sol.height)

	for y := 0; y < sol.height; y++ {
		for x := 0; x < sol.width; x++ {
			b.WriteRune(cellGlyph(sol.cells[sol.PositionToIndex(x, y)], glyphs))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func cellGlyph(c *Cell, glyphs map[int]rune) rune {
	if c.Contradiction() {
		return GlyphContradiction
	}
	id, ok := c.Tile()
	if !ok {
		return GlyphOpen
	}
	if g, ok := glyphs[id]; ok {
		return g
	}
	digits := strconv.Itoa(id)
	return rune(digits[len(digits)-1])
}
