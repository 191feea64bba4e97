package feed

import "math"

// Anchor is a visible item used as a fixed reference across one history fetch.
type Anchor struct {
	MessageID string
	// ViewportOffset is the item's top relative to the viewport top; negative
	// when the item is clipped above the fold.
	ViewportOffset int
	Priority       float64
}

// AnchorSet is everything captured before a fetch that restoration may fall
// back on.
type AnchorSet struct {
	Primary       *Anchor
	Secondary     *Anchor
	FirstVisible  *Anchor
	ScrollTop     int
	ContentHeight int
	ItemCount     int
}

// Empty reports whether no anchor item was captured.
func (s AnchorSet) Empty() bool {
	return s.Primary == nil && s.Secondary == nil && s.FirstVisible == nil
}

// CaptureAnchors scores the visible items and keeps the two most stable.
// Items in the upper third of the viewport score highest, then the middle,
// then the lower third; items clipped at the top score lowest. Fully visible
// items earn a bonus. skip excludes items that may move on their own, such as
// pending sends.
func CaptureAnchors(layout Layout, skip func(id string) bool) AnchorSet {
	set := AnchorSet{
		ScrollTop:     layout.ScrollTop,
		ContentHeight: layout.ContentHeight,
		ItemCount:     len(layout.Items),
	}
	visible := layout.Visible()
	if len(visible) == 0 || layout.ViewportHeight <= 0 {
		return set
	}

	var best, second *Anchor
	var bestDist, secondDist float64
	for _, box := range visible {
		if skip != nil && skip(box.ID) {
			continue
		}
		offset := box.Top - layout.ScrollTop
		if set.FirstVisible == nil {
			set.FirstVisible = &Anchor{MessageID: box.ID, ViewportOffset: offset}
		}
		score, dist := anchorScore(offset, box.Height, layout.ViewportHeight)
		candidate := &Anchor{MessageID: box.ID, ViewportOffset: offset, Priority: score}
		switch {
		case best == nil || better(score, dist, best.Priority, bestDist):
			second, secondDist = best, bestDist
			best, bestDist = candidate, dist
		case second == nil || better(score, dist, second.Priority, secondDist):
			second, secondDist = candidate, dist
		}
	}
	if set.FirstVisible == nil {
		box := visible[0]
		set.FirstVisible = &Anchor{MessageID: box.ID, ViewportOffset: box.Top - layout.ScrollTop}
	}
	set.Primary = best
	set.Secondary = second
	return set
}

func anchorScore(offset, height, viewportHeight int) (float64, float64) {
	vh := float64(viewportHeight)
	r := float64(offset) / vh
	var score float64
	switch {
	case offset < 0:
		score = 0.5
	case r < 1.0/3:
		score = 3
	case r < 2.0/3:
		score = 2
	default:
		score = 1
	}
	if offset >= 0 && offset+height <= viewportHeight {
		score++
	}
	return score, math.Abs(r - 1.0/6)
}

func better(score, dist, otherScore, otherDist float64) bool {
	if score != otherScore {
		return score > otherScore
	}
	return dist < otherDist
}

// RestoreMethod names the anchor a restoration used.
type RestoreMethod string

const (
	RestoreNone         RestoreMethod = "none"
	RestorePrimary      RestoreMethod = "primary"
	RestoreSecondary    RestoreMethod = "secondary"
	RestoreFirstVisible RestoreMethod = "first_visible"
	RestoreEstimate     RestoreMethod = "estimate"
)

// RestoreParams carries what the loader knows about the insertion.
type RestoreParams struct {
	Expected      int
	Actual        int
	Padding       int
	AvgItemHeight int
}

// Restore is the computed corrective scroll.
type Restore struct {
	Offset   int
	Method   RestoreMethod
	AnchorID string
	// Want is the viewport offset the anchor should end up at.
	Want int
}

// ComputeRestoreOffset returns the scroll offset that puts the captured
// anchor back where it was, given the geometry after the insert. It tries the
// primary anchor, the secondary anchor, then the first visible item, and
// finally estimates the inserted height.
func ComputeRestoreOffset(before AnchorSet, after Layout, p RestoreParams) Restore {
	candidates := []struct {
		anchor *Anchor
		method RestoreMethod
	}{
		{before.Primary, RestorePrimary},
		{before.Secondary, RestoreSecondary},
		{before.FirstVisible, RestoreFirstVisible},
	}
	for _, c := range candidates {
		if c.anchor == nil {
			continue
		}
		box, ok := after.Box(c.anchor.MessageID)
		if !ok {
			continue
		}
		target := box.Top - c.anchor.ViewportOffset + p.Padding
		return Restore{
			Offset:   clampScroll(target, after),
			Method:   c.method,
			AnchorID: c.anchor.MessageID,
			Want:     c.anchor.ViewportOffset - p.Padding,
		}
	}

	if before.ItemCount == 0 && p.Actual == 0 {
		return Restore{Offset: after.ScrollTop, Method: RestoreNone}
	}
	target := before.ScrollTop + estimateGrowth(before, after, p) + p.Padding
	return Restore{Offset: clampScroll(target, after), Method: RestoreEstimate}
}

// estimateGrowth guesses how much content was inserted above the old scroll
// position. Measured growth wins when both heights are known; otherwise the
// average item height times the expected page size is scaled down by the
// share of the page that actually arrived.
func estimateGrowth(before AnchorSet, after Layout, p RestoreParams) int {
	if before.ContentHeight > 0 && after.ContentHeight > before.ContentHeight {
		return after.ContentHeight - before.ContentHeight
	}
	avg := p.AvgItemHeight
	if avg <= 0 && before.ItemCount > 0 {
		avg = before.ContentHeight / before.ItemCount
	}
	if avg <= 0 {
		avg = 1
	}
	expected := p.Expected
	if expected <= 0 {
		expected = p.Actual
	}
	if expected <= 0 {
		return 0
	}
	ratio := float64(p.Actual) / float64(expected)
	return int(math.Round(float64(avg*expected) * ratio))
}

// VerifyRestore reports whether the anchor sits within tolerance of where it
// was captured.
func VerifyRestore(r Restore, after Layout, tolerance int) bool {
	if r.AnchorID == "" {
		return abs(after.ScrollTop-r.Offset) <= tolerance
	}
	box, ok := after.Box(r.AnchorID)
	if !ok {
		return false
	}
	return abs(box.Top-after.ScrollTop-r.Want) <= tolerance
}

func clampScroll(offset int, layout Layout) int {
	if offset < 0 {
		return 0
	}
	if max := layout.MaxScroll(); offset > max {
		return max
	}
	return offset
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
