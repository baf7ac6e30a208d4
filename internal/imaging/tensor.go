package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

const (
	Channels   = 3
	ResizeSize = 300
	CropSize   = 299
)

var (
	// Mean and Std are the per-channel ImageNet statistics, in R, G, B order.
	Mean = [Channels]float32{0.485, 0.456, 0.406}
	Std  = [Channels]float32{0.229, 0.224, 0.225}

	// Shape is the [N, C, H, W] layout of every Tensor.
	Shape = [4]int64{1, Channels, CropSize, CropSize}
)

const planeSize = CropSize * CropSize

// Tensor is the normalized model input. It is never modified after ToTensor
// returns it.
type Tensor struct {
	data []float32
}

func (t *Tensor) Shape() [4]int64 { return Shape }

func (t *Tensor) Len() int { return len(t.data) }

// At returns the value for channel c at row y, column x.
func (t *Tensor) At(c, y, x int) float32 {
	return t.data[c*planeSize+y*CropSize+x]
}

// Values returns a copy of the flattened NCHW data.
func (t *Tensor) Values() []float32 {
	return append([]float32(nil), t.data...)
}

// CopyTo copies the flattened data into dst and returns the number of values copied.
func (t *Tensor) CopyTo(dst []float32) int {
	return copy(dst, t.data)
}

// ToTensor resizes the shortest side to ResizeSize, center-crops CropSize,
// scales to [0,1] and normalizes with Mean and Std.
func ToTensor(img *Image) *Tensor {
	resized := resizeShortest(img.Pixels, ResizeSize)
	left, top := cropOffsets(resized.Bounds(), CropSize)

	data := make([]float32, Channels*planeSize)
	for y := 0; y < CropSize; y++ {
		for x := 0; x < CropSize; x++ {
			r, g, b := rgbAt(resized, left+x, top+y)
			i := y*CropSize + x
			data[i] = normalize(r, 0)
			data[planeSize+i] = normalize(g, 1)
			data[2*planeSize+i] = normalize(b, 2)
		}
	}
	return &Tensor{data: data}
}

func normalize(v uint8, c int) float32 {
	return (float32(v)/255.0 - Mean[c]) / Std[c]
}

// resizedDims keeps the aspect ratio; the long side is truncated, not rounded.
func resizedDims(w, h, short int) (int, int) {
	if w <= h {
		return short, short * h / w
	}
	return short * w / h, short
}

func resizeShortest(src *image.RGBA, short int) image.Image {
	b := src.Bounds()
	w, h := resizedDims(b.Dx(), b.Dy(), short)
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	return resize.Resize(uint(w), uint(h), src, resize.Bilinear)
}

// cropOffsets centers a size×size window; half-pixel offsets round to even.
func cropOffsets(b image.Rectangle, size int) (left, top int) {
	left = b.Min.X + int(math.RoundToEven(float64(b.Dx()-size)/2))
	top = b.Min.Y + int(math.RoundToEven(float64(b.Dy()-size)/2))
	return left, top
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		return rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}
