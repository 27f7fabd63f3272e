package detector

import (
	"image"
	"image/color"
)

// Frame is a decoded image held as interleaved BGR bytes, row-major,
// three bytes per pixel. This is the layout the detection models were
// exported against.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame converts a decoded image into a BGR frame. Alpha is dropped.
func NewFrame(img image.Image) *Frame {
	b := img.Bounds()
	f := &Frame{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]byte, b.Dx()*b.Dy()*3),
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			f.Pix[i] = c.B
			f.Pix[i+1] = c.G
			f.Pix[i+2] = c.R
			i += 3
		}
	}
	return f
}

// At returns the pixel at x, y as RGB.
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i+2], f.Pix[i+1], f.Pix[i]
}

// Image returns the frame as an RGB image for consumers that work on
// image.Image values.
func (f *Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.At(x, y)
			o := img.PixOffset(x, y)
			img.Pix[o] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = b
			img.Pix[o+3] = 0xff
		}
	}
	return img
}
