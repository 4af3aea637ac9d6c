package renderer_test

import (
	"testing"

	"honnef.co/go/retro/renderer"
)

func TestDrawStatistics(t *testing.T) {
	var stats renderer.FrameStats
	stats.CountDraw(300, 2)

	if stats.DrawCalls != 1 {
		t.Errorf("draw calls = %d, want 1", stats.DrawCalls)
	}
	if stats.Vertices != 600 {
		t.Errorf("vertices = %d, want 600", stats.Vertices)
	}
	if stats.Triangles != 200 {
		t.Errorf("triangles = %d, want 200", stats.Triangles)
	}
}

func TestDrawStatisticsDefaultInstanceCount(t *testing.T) {
	var stats renderer.FrameStats
	stats.CountDraw(30, 0)
	if stats.Vertices != 30 || stats.Triangles != 10 {
		t.Errorf("instance count 0 should count as 1: %+v", stats)
	}
}

func TestIndirectCountsOnlyCalls(t *testing.T) {
	var stats renderer.FrameStats
	stats.CountIndirect()
	if stats.DrawCalls != 1 || stats.Vertices != 0 || stats.Triangles != 0 {
		t.Errorf("indirect draws must only bump the call counter: %+v", stats)
	}
}

func TestDepthFormatAccounting(t *testing.T) {
	if got := renderer.FormatDepth16.BytesPerPixel(); got != 2 {
		t.Errorf("Depth16 bytes per pixel = %d, want 2", got)
	}
	if got := renderer.FormatRGBA8.BytesPerPixel(); got != 4 {
		t.Errorf("RGBA8 bytes per pixel = %d, want 4", got)
	}
	if !renderer.FormatDepth24.IsDepth() || renderer.FormatBGRA8.IsDepth() {
		t.Error("IsDepth misclassifies formats")
	}
}
