package ui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// halfBlocks draws img into at most cols x rows cells, two pixels per cell,
// keeping its aspect ratio.
func halfBlocks(img image.Image, cols, rows int) string {
	b := img.Bounds()
	if cols <= 0 || rows <= 0 || b.Empty() {
		return ""
	}

	// Each cell is two pixels tall
	w, h := fit(b.Dx(), b.Dy(), cols, rows*2)
	h -= h % 2
	if w == 0 || h == 0 {
		return ""
	}

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := sample(img, b, x, y, w, h)
			bottom := sample(img, b, x, y+1, w, h)
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
		if y+2 < h {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func fit(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	w, h := maxW, srcH*maxW/srcW
	if h > maxH {
		w, h = srcW*maxH/srcH, maxH
	}
	return max(1, w), max(1, h)
}

func sample(img image.Image, b image.Rectangle, x, y, w, h int) string {
	sx := b.Min.X + x*b.Dx()/w
	sy := b.Min.Y + y*b.Dy()/h
	r, g, bl, _ := img.At(sx, sy).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, bl>>8)
}
