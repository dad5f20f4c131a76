package waveform

import (
	"fmt"
	"image"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// EncodePNG 把画布写成PNG, scale>1时按比例放大
func EncodePNG(w io.Writer, img *image.RGBA, scale int) error {
	var out image.Image = img
	if scale > 1 {
		b := img.Bounds()
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		out = dst
	}
	if err := png.Encode(w, out); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
