package logic

import (
	"math"
	"time"
)

// TouchGrid is a fixed rows × cols grid of visited cells. The visited set
// only grows.
type TouchGrid struct {
	rows    int
	cols    int
	visited map[Cell]struct{}
}

// NewTouchGrid creates an empty grid.
func NewTouchGrid(rows, cols int) *TouchGrid {
	return &TouchGrid{
		rows:    rows,
		cols:    cols,
		visited: make(map[Cell]struct{}, rows*cols),
	}
}

// Visit marks c as visited. It returns true only for a newly visited cell;
// out-of-range cells and revisits are ignored.
func (g *TouchGrid) Visit(c Cell) bool {
	if c.Row < 0 || c.Row >= g.rows || c.Col < 0 || c.Col >= g.cols {
		return false
	}
	if _, ok := g.visited[c]; ok {
		return false
	}
	g.visited[c] = struct{}{}
	return true
}

// Visited returns the number of distinct visited cells.
func (g *TouchGrid) Visited() int {
	return len(g.visited)
}

// Size returns the total number of cells.
func (g *TouchGrid) Size() int {
	return g.rows * g.cols
}

// Full reports whether every cell has been visited.
func (g *TouchGrid) Full() bool {
	return len(g.visited) == g.Size()
}

// touchProbe maps pointer events onto a TouchGrid.
type touchProbe struct {
	grid   *TouchGrid
	handle Handle

	// Layout is captured once; later layouts are ignored so that a moving
	// container cannot shift the cell mapping mid-probe.
	mounted      bool
	originX      float64
	originY      float64
	cellW, cellH float64

	done bool
}

func newTouchProbe(cfg Config, h Handle) *touchProbe {
	return &touchProbe{
		grid:   NewTouchGrid(cfg.GridRows, cfg.GridCols),
		handle: h,
	}
}

func (p *touchProbe) Step() Step      { return StepTouchscreen }
func (p *touchProbe) Source() Source  { return SourcePointer }
func (p *touchProbe) Start(time.Time) {}
func (p *touchProbe) Done() bool      { return p.done }
func (p *touchProbe) Stop() error     { return nil }

func (p *touchProbe) Process(in Input) []Event {
	switch in.Kind {
	case InputLayout:
		p.mount(in.Layout)
		return nil
	case InputPointer:
		return p.touch(in.Pointer, in.Time)
	}
	return nil
}

func (p *touchProbe) mount(l Layout) {
	if p.mounted || l.Validate() != nil {
		return
	}
	p.mounted = true
	p.originX = l.X
	p.originY = l.Y
	p.cellW = l.Width / float64(p.grid.cols)
	p.cellH = l.Height / float64(p.grid.rows)
}

// cellAt maps an absolute pointer position to grid coordinates. The bounds
// check happens in float space so huge coordinates never overflow int.
func (p *touchProbe) cellAt(x, y float64) (Cell, bool) {
	row := math.Floor((y - p.originY) / p.cellH)
	col := math.Floor((x - p.originX) / p.cellW)
	if row < 0 || row >= float64(p.grid.rows) || col < 0 || col >= float64(p.grid.cols) {
		return Cell{}, false
	}
	return Cell{Row: int(row), Col: int(col)}, true
}

func (p *touchProbe) touch(ev PointerEvent, at time.Time) []Event {
	if !p.mounted || p.done {
		return nil
	}
	c, ok := p.cellAt(ev.X, ev.Y)
	if !ok || !p.grid.Visit(c) {
		return nil
	}
	events := []Event{{Timestamp: at, Type: EventCellVisited, Cell: c}}
	if p.grid.Full() {
		if res, ok := p.handle.Resolve(StatusPassed, at); ok {
			events = append(events, res)
		}
		p.done = true
	}
	return events
}

func (p *touchProbe) Abort(st Status, at time.Time) []Event {
	p.done = true
	return abortHandles(st, at, p.handle)
}
