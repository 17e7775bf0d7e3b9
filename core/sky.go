package core

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// SkyGradient renders the background texture: a vertical gradient from
// zenith to horizon, built at a few key rows and upscaled with
// Catmull-Rom so the banding disappears.
func SkyGradient(width, height int, zenith, horizon color.RGBA) *image.RGBA {
	const keyRows = 64
	small := image.NewRGBA(image.Rect(0, 0, 4, keyRows))
	for y := 0; y < keyRows; y++ {
		t := float64(y) / float64(keyRows-1)
		c := lerpRGBA(zenith, horizon, t)
		for x := 0; x < 4; x++ {
			small.SetRGBA(x, y, c)
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Src, nil)
	return out
}

func lerpRGBA(a, b color.RGBA, t float64) color.RGBA {
	l := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t)
	}
	return color.RGBA{l(a.R, b.R), l(a.G, b.G), l(a.B, b.B), 255}
}
