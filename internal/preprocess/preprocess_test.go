package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

var imagenetMean = [3]float32{103.939, 116.779, 123.68}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcess_ShapeIgnoresAspectRatio(t *testing.T) {
	p := New(224, imagenetMean)

	sizes := []struct{ w, h int }{
		{1, 1},
		{10, 300},
		{500, 20},
		{224, 224},
		{640, 480},
	}

	for _, s := range sizes {
		data := encodePNG(t, solid(s.w, s.h, color.RGBA{R: 200, G: 100, B: 50, A: 255}))

		tensor, err := p.Process(data)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 224, 224, 3}, tensor.Shape, "input %dx%d", s.w, s.h)
		assert.Len(t, tensor.Data, 224*224*3)
	}
}

func TestTensor_BGRMeanSubtraction(t *testing.T) {
	p := New(4, imagenetMean)
	tensor := p.Tensor(solid(7, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255}))

	require.Len(t, tensor.Data, 4*4*3)
	for i := 0; i < len(tensor.Data); i += 3 {
		assert.InDelta(t, 30-103.939, tensor.Data[i], 1e-4)
		assert.InDelta(t, 20-116.779, tensor.Data[i+1], 1e-4)
		assert.InDelta(t, 10-123.68, tensor.Data[i+2], 1e-4)
	}
}

func TestTensor_PixelLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{A: 255})

	p := New(2, [3]float32{})
	tensor := p.Tensor(img)

	want := []float32{
		0, 0, 255, // (0,0) red
		0, 255, 0, // (1,0) green
		255, 0, 0, // (0,1) blue
		0, 0, 0, // (1,1) black
	}
	assert.Equal(t, want, tensor.Data)
}

func TestDecode_Formats(t *testing.T) {
	p := New(8, imagenetMean)
	img := solid(16, 12, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	var jpg, bm, gf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))
	require.NoError(t, bmp.Encode(&bm, img))
	require.NoError(t, gif.Encode(&gf, img, nil))

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"png", encodePNG(t, img), "png"},
		{"jpeg", jpg.Bytes(), "jpeg"},
		{"bmp", bm.Bytes(), "bmp"},
		{"gif", gf.Bytes(), "gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, format, err := p.Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, 16, decoded.Bounds().Dx())
			assert.Equal(t, 12, decoded.Bounds().Dy())
		})
	}
}

func TestDecode_Garbage(t *testing.T) {
	p := New(224, imagenetMean)

	inputs := map[string][]byte{
		"text":      []byte("definitely not an image"),
		"empty":     {},
		"truncated": encodePNG(t, solid(4, 4, color.Black))[:20],
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := p.Process(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
		})
	}
}

func TestProcess_Deterministic(t *testing.T) {
	p := New(32, imagenetMean)
	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 6), B: uint8(x + y), A: 255})
		}
	}
	data := encodePNG(t, img)

	a, err := p.Process(data)
	require.NoError(t, err)
	b, err := p.Process(data)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestTensor_NearestSamplesSingleSourcePixel(t *testing.T) {
	// 10 px wide gradient, R = 10*x. Downscaling to 4 must pick source
	// columns floor((x+0.5)*10/4) = 1, 3, 6, 8 without blending.
	img := image.NewRGBA(image.Rect(0, 0, 10, 1))
	for x := 0; x < 10; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(10 * x), A: 255})
	}

	tensor := New(4, [3]float32{}).Tensor(img)

	for y := 0; y < 4; y++ {
		var reds []float32
		for x := 0; x < 4; x++ {
			reds = append(reds, tensor.Data[(y*4+x)*3+2])
		}
		assert.Equal(t, []float32{10, 30, 60, 80}, reds, "row %d", y)
	}
}

func TestNewWithInterpolation(t *testing.T) {
	img := solid(30, 17, color.RGBA{R: 90, G: 60, B: 30, A: 255})

	for _, name := range []string{"", Nearest, Bilinear, Bicubic, Lanczos} {
		t.Run(name, func(t *testing.T) {
			p, err := NewWithInterpolation(16, [3]float32{}, name)
			require.NoError(t, err)

			tensor := p.Tensor(img)
			assert.Equal(t, []int64{1, 16, 16, 3}, tensor.Shape)
			assert.InDelta(t, 30, tensor.Data[0], 1)
			assert.InDelta(t, 90, tensor.Data[2], 1)
		})
	}

	_, err := NewWithInterpolation(16, [3]float32{}, "area")
	assert.Error(t, err)
}

func TestDecode_UnsupportedImageTypes(t *testing.T) {
	p := New(224, imagenetMean)

	webp := append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 24)...)
	tiff := append([]byte("II*\x00\x08\x00\x00\x00"), make([]byte, 24)...)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"webp", webp, "unsupported image type image/webp"},
		{"tiff", tiff, "unsupported image type image/tiff"},
		{"text", []byte("hello there"), "unsupported content type text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
