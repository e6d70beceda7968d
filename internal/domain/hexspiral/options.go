package hexspiral

const (
	defaultTileWidth   = 94
	defaultTileHeight  = 70
	defaultMarginRings = 2
)

// Option applies a configuration option to the Allocator.
type Option func(*Allocator)

// WithLayout sets the tile pitch. Non-positive dimensions are ignored.
func WithLayout(l Layout) Option {
	return func(a *Allocator) {
		if l.Width > 0 && l.Height > 0 {
			a.layout = l
		}
	}
}

// WithMarginRings sets how many extra rings are precomputed past the current need.
func WithMarginRings(n int) Option {
	return func(a *Allocator) {
		if n >= 0 {
			a.margin = n
		}
	}
}
