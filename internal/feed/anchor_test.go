package feed

import "testing"

func boxes(heights ...int) []ItemBox {
	var out []ItemBox
	top := 0
	for i, h := range heights {
		out = append(out, ItemBox{ID: string(rune('a' + i)), Top: top, Height: h})
		top += h
	}
	return out
}

func layoutOf(scrollTop, viewport int, heights ...int) Layout {
	items := boxes(heights...)
	content := 0
	for _, h := range heights {
		content += h
	}
	return Layout{ScrollTop: scrollTop, ViewportHeight: viewport, ContentHeight: content, Items: items}
}

func TestCaptureAnchorsPrefersUpperThird(t *testing.T) {
	// a is clipped above the fold, b sits in the upper third, c in the middle.
	layout := layoutOf(5, 30, 10, 8, 8, 8, 8)
	set := CaptureAnchors(layout, nil)
	if set.Primary == nil || set.Primary.MessageID != "b" {
		t.Fatalf("primary: %+v", set.Primary)
	}
	if set.Primary.ViewportOffset != 5 {
		t.Fatalf("primary offset: %d", set.Primary.ViewportOffset)
	}
	if set.Secondary == nil || set.Secondary.MessageID != "c" {
		t.Fatalf("secondary: %+v", set.Secondary)
	}
	if set.FirstVisible == nil || set.FirstVisible.MessageID != "a" || set.FirstVisible.ViewportOffset != -5 {
		t.Fatalf("first visible: %+v", set.FirstVisible)
	}
}

func TestCaptureAnchorsSkipsPending(t *testing.T) {
	layout := layoutOf(0, 30, 10, 10, 10)
	set := CaptureAnchors(layout, func(id string) bool { return id == "a" })
	if set.Primary.MessageID != "b" || set.FirstVisible.MessageID != "b" {
		t.Fatalf("pending item used as anchor: %+v", set)
	}
}

func TestComputeRestoreOffsetFallbacks(t *testing.T) {
	before := AnchorSet{
		Primary:       &Anchor{MessageID: "p", ViewportOffset: 4},
		Secondary:     &Anchor{MessageID: "s", ViewportOffset: 12},
		FirstVisible:  &Anchor{MessageID: "f", ViewportOffset: -2},
		ScrollTop:     10,
		ContentHeight: 100,
		ItemCount:     10,
	}
	after := func(ids ...string) Layout {
		l := Layout{ScrollTop: 10, ViewportHeight: 20, ContentHeight: 200}
		for i, id := range ids {
			l.Items = append(l.Items, ItemBox{ID: id, Top: 50 + i*20, Height: 10})
		}
		return l
	}

	tests := []struct {
		name   string
		layout Layout
		params RestoreParams
		method RestoreMethod
		offset int
	}{
		{"primary", after("p", "s", "f"), RestoreParams{}, RestorePrimary, 46},
		{"primary with padding", after("p"), RestoreParams{Padding: 3}, RestorePrimary, 49},
		{"secondary", after("x", "s"), RestoreParams{}, RestoreSecondary, 58},
		{"first visible", after("x", "y", "f"), RestoreParams{}, RestoreFirstVisible, 92},
		{"estimate from measured growth", after("x"), RestoreParams{Expected: 10, Actual: 5}, RestoreEstimate, 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRestoreOffset(before, tt.layout, tt.params)
			if got.Method != tt.method || got.Offset != tt.offset {
				t.Fatalf("got %+v want method=%s offset=%d", got, tt.method, tt.offset)
			}
		})
	}
}

func TestComputeRestoreOffsetEstimateScalesByArrivedShare(t *testing.T) {
	before := AnchorSet{ScrollTop: 0, ContentHeight: 0, ItemCount: 0}
	after := Layout{ScrollTop: 0, ViewportHeight: 20, ContentHeight: 500}
	got := ComputeRestoreOffset(before, after, RestoreParams{Expected: 30, Actual: 10, AvgItemHeight: 4})
	if got.Method != RestoreEstimate || got.Offset != 40 {
		t.Fatalf("got %+v", got)
	}
}

func TestComputeRestoreOffsetClamps(t *testing.T) {
	before := AnchorSet{Primary: &Anchor{MessageID: "p", ViewportOffset: 0}}
	after := Layout{ViewportHeight: 20, ContentHeight: 30, Items: []ItemBox{{ID: "p", Top: 25, Height: 5}}}
	got := ComputeRestoreOffset(before, after, RestoreParams{})
	if got.Offset != 10 {
		t.Fatalf("offset not clamped to max scroll: %+v", got)
	}
	if VerifyRestore(got, Layout{ScrollTop: 10, ViewportHeight: 20, ContentHeight: 30, Items: after.Items}, 2) {
		t.Fatalf("unreachable target should not verify")
	}
}

func TestVerifyRestoreTolerance(t *testing.T) {
	r := Restore{AnchorID: "a", Want: 5}
	layout := Layout{ScrollTop: 100, ViewportHeight: 50, ContentHeight: 400, Items: []ItemBox{{ID: "a", Top: 110, Height: 10}}}
	if VerifyRestore(r, layout, 4) {
		t.Fatalf("offset 10 is outside 5±4")
	}
	if !VerifyRestore(r, layout, 5) {
		t.Fatalf("offset 10 is within 5±5")
	}
}
