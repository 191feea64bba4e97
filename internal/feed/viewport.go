package feed

// ItemBox is the rendered geometry of one item in content coordinates.
type ItemBox struct {
	ID     string
	Top    int
	Height int
}

// Bottom returns the first row below the item.
func (b ItemBox) Bottom() int {
	return b.Top + b.Height
}

// Layout is a snapshot of the rendered feed geometry. Units are whatever the
// renderer measures in: terminal rows for the TUI, pixels elsewhere.
type Layout struct {
	ScrollTop      int
	ViewportHeight int
	ContentHeight  int
	Items          []ItemBox
}

// Box returns the geometry of id.
func (l Layout) Box(id string) (ItemBox, bool) {
	for _, box := range l.Items {
		if box.ID == id {
			return box, true
		}
	}
	return ItemBox{}, false
}

// Visible returns the boxes that intersect the viewport, top to bottom.
func (l Layout) Visible() []ItemBox {
	bottom := l.ScrollTop + l.ViewportHeight
	var out []ItemBox
	for _, box := range l.Items {
		if box.Bottom() <= l.ScrollTop || box.Top >= bottom {
			continue
		}
		out = append(out, box)
	}
	return out
}

// MaxScroll is the largest valid ScrollTop.
func (l Layout) MaxScroll() int {
	if l.ContentHeight <= l.ViewportHeight {
		return 0
	}
	return l.ContentHeight - l.ViewportHeight
}

// DistanceToBottom is the amount of content below the viewport.
func (l Layout) DistanceToBottom() int {
	d := l.ContentHeight - (l.ScrollTop + l.ViewportHeight)
	if d < 0 {
		return 0
	}
	return d
}

// Viewport is implemented by the renderer. Layout must reflect the timeline
// as of the call; the engine measures after every mutation.
type Viewport interface {
	Layout() Layout
	ScrollTo(offset int)
}

// StackLayout lays items out top to bottom with heightOf, starting at offset 0.
func StackLayout(items []*Item, heightOf func(*Item) int, scrollTop, viewportHeight int) Layout {
	layout := Layout{ScrollTop: scrollTop, ViewportHeight: viewportHeight}
	top := 0
	for _, item := range items {
		h := heightOf(item)
		layout.Items = append(layout.Items, ItemBox{ID: item.ID(), Top: top, Height: h})
		top += h
	}
	layout.ContentHeight = top
	if layout.ScrollTop > layout.MaxScroll() {
		layout.ScrollTop = layout.MaxScroll()
	}
	if layout.ScrollTop < 0 {
		layout.ScrollTop = 0
	}
	return layout
}
