package feed

import (
	"github.com/vibeteen/mural/internal/domain/hexspiral"
	"github.com/vibeteen/mural/internal/domain/model"
)

// Tile is an event placed on the board.
type Tile struct {
	Index int
	Event model.ImpactEvent
	Cell  hexspiral.Axial
	Point hexspiral.Point
}

// Board places events on the spiral, newest closest to the anchor.
func (s Stream) Board(alloc *hexspiral.Allocator) []Tile {
	cells := alloc.Cells(len(s.events))
	layout := alloc.Layout()
	tiles := make([]Tile, len(s.events))
	for i, e := range s.events {
		tiles[i] = Tile{
			Index: i,
			Event: e,
			Cell:  cells[i],
			Point: layout.ToPoint(cells[i]),
		}
	}
	return tiles
}
