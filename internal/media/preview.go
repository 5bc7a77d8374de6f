package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
)

// DefaultPreviewSize is the box previews are scaled to cover.
var DefaultPreviewSize = Size{Width: 256, Height: 256}

// scaleToFill shrinks src so that it just covers box, keeping its aspect
// ratio. Images already smaller than box are returned untouched.
func scaleToFill(src image.Image, box Size) image.Image {
	b := src.Bounds()
	if box.Width <= 0 || box.Height <= 0 || b.Empty() {
		return src
	}

	scale := math.Max(float64(box.Width)/float64(b.Dx()), float64(box.Height)/float64(b.Dy()))
	if scale >= 1 {
		return src
	}

	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return img, nil
}

// progressReader reports the fraction of total bytes read so far.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     float64
	progress func(float64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.progress != nil && p.total > 0 {
		frac := math.Min(1, float64(p.read)/float64(p.total))
		// Only report whole-percent steps
		if frac-p.last >= 0.01 || (frac == 1 && p.last < 1) {
			p.last = frac
			p.progress(frac)
		}
	}
	return n, err
}
