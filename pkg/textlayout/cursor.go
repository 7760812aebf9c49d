package textlayout

// Cursor tracks the vertical write position on a page of fixed height and
// asks for a new page when a block would cross the bottom margin.
type Cursor struct {
	Top    float64
	Bottom float64
	Y      float64

	newPage func()
	pages   int
}

// NewCursor creates a cursor positioned at top. newPage is invoked whenever
// Reserve needs a fresh page; it may be nil for unbounded layouts.
func NewCursor(top, bottom float64, newPage func()) *Cursor {
	return &Cursor{
		Top:     top,
		Bottom:  bottom,
		Y:       top,
		newPage: newPage,
	}
}

// Fits reports whether a block of height h fits above the bottom margin
func (c *Cursor) Fits(h float64) bool {
	return c.Y+h <= c.Bottom
}

// Reserve makes room for a block of height h, breaking the page when needed.
// It returns true if a page break happened. A block taller than a whole page
// is placed at the top of a fresh page and allowed to overflow.
func (c *Cursor) Reserve(h float64) bool {
	if c.Fits(h) {
		return false
	}
	if c.Y == c.Top {
		return false
	}
	c.Break()
	return true
}

// Break starts a new page unconditionally
func (c *Cursor) Break() {
	if c.newPage != nil {
		c.newPage()
	}
	c.pages++
	c.Y = c.Top
}

// Advance moves the cursor down by h
func (c *Cursor) Advance(h float64) {
	c.Y += h
}

// PagesAdded returns how many page breaks the cursor has triggered
func (c *Cursor) PagesAdded() int {
	return c.pages
}
