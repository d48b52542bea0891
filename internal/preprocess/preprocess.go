package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrDecode is returned when the payload is not an image in a supported
// format.
var ErrDecode = errors.New("failed to decode image")

// Tensor is a batch of one NHWC image.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Interpolation names accepted by NewWithInterpolation. Nearest is sampled
// exactly, one source pixel per output pixel; the others go through
// nfnt/resize.
const (
	Nearest  = "nearest"
	Bilinear = "bilinear"
	Bicubic  = "bicubic"
	Lanczos  = "lanczos"
)

var filters = map[string]resize.InterpolationFunction{
	Bilinear: resize.Bilinear,
	Bicubic:  resize.Bicubic,
	Lanczos:  resize.Lanczos3,
}

type decoder struct {
	mime   string
	format string
	decode func(io.Reader) (image.Image, error)
}

// Sniffed content type picks the decoder, not the file extension.
var decoders = []decoder{
	{"image/png", "png", png.Decode},
	{"image/jpeg", "jpeg", jpeg.Decode},
	{"image/gif", "gif", gif.Decode},
	{"image/bmp", "bmp", bmp.Decode},
}

// Preprocessor turns encoded images into model input. Images are resized to
// Size x Size without keeping the aspect ratio, converted to BGR and have
// Mean subtracted per channel. There is no scaling step.
type Preprocessor struct {
	Size          int
	Mean          [3]float32 // B, G, R
	Interpolation string
}

// New samples nearest neighbours the way the loader the weights were
// evaluated with does: output pixel x takes source pixel
// floor((x+0.5) * in/out).
func New(size int, mean [3]float32) *Preprocessor {
	return &Preprocessor{Size: size, Mean: mean, Interpolation: Nearest}
}

func NewWithInterpolation(size int, mean [3]float32, interpolation string) (*Preprocessor, error) {
	if interpolation == "" {
		interpolation = Nearest
	}
	if _, ok := filters[interpolation]; !ok && interpolation != Nearest {
		return nil, fmt.Errorf("unknown interpolation %q", interpolation)
	}
	return &Preprocessor{Size: size, Mean: mean, Interpolation: interpolation}, nil
}

// Decode sniffs the payload and decodes it with the matching decoder. Only
// the first frame of an animated GIF is used.
func (p *Preprocessor) Decode(data []byte) (image.Image, string, error) {
	mtype := mimetype.Detect(data)
	for _, d := range decoders {
		if !mtype.Is(d.mime) {
			continue
		}
		img, err := d.decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return img, d.format, nil
	}

	if strings.HasPrefix(mtype.String(), "image/") {
		return nil, "", fmt.Errorf("%w: unsupported image type %s", ErrDecode, mtype.String())
	}
	return nil, "", fmt.Errorf("%w: unsupported content type %s", ErrDecode, mtype.String())
}

func (p *Preprocessor) resize(img image.Image) image.Image {
	if filter, ok := filters[p.Interpolation]; ok {
		return resize.Resize(uint(p.Size), uint(p.Size), img, filter)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, p.Size, p.Size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Tensor resizes img and lays it out as a normalized (1, Size, Size, 3)
// tensor.
func (p *Preprocessor) Tensor(img image.Image) *Tensor {
	resized := p.resize(img)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]float32, height*width*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Alpha is dropped, not premultiplied.
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)

			i := (y*width + x) * 3
			data[i] = float32(c.B) - p.Mean[0]
			data[i+1] = float32(c.G) - p.Mean[1]
			data[i+2] = float32(c.R) - p.Mean[2]
		}
	}

	return &Tensor{
		Shape: []int64{1, int64(height), int64(width), 3},
		Data:  data,
	}
}

// Process decodes data and returns the model input for it.
func (p *Preprocessor) Process(data []byte) (*Tensor, error) {
	img, _, err := p.Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Tensor(img), nil
}
