// Package photo renders the print-ready card photo from an uploaded original.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

var (
	// ErrImageDecode indicates the source bytes are not a supported raster image.
	ErrImageDecode = errors.New("image cannot be decoded")
	// ErrCropOutOfBounds indicates the crop rectangle is empty or leaves the working canvas.
	ErrCropOutOfBounds = errors.New("crop rectangle outside rotated canvas")
	// ErrInvalidRotation indicates a rotation that is not a multiple of 90 degrees.
	ErrInvalidRotation = errors.New("rotation must be a multiple of 90 degrees")
	// ErrImageTooLarge indicates a source whose pixel dimensions exceed MaxSourceSide or MaxSourcePixels.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// Source images are bounded before decoding. The working canvas grows with
// the square of the longest side, so both limits apply.
const (
	MaxSourceSide   = 6000
	MaxSourcePixels = 24_000_000
)

// JPEGQuality is the output encoder quality.
const JPEGQuality = 90

// Target aspect ratio of the card photo slot.
const (
	AspectWidth  = 139
	AspectHeight = 166
)

// Rect is a crop rectangle in pixels, relative to the top-left corner of the
// rotated source image.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// NormalizeRotation maps any multiple of 90 (negative included) into {0, 90, 180, 270}.
func NormalizeRotation(deg int) (int, error) {
	if deg%90 != 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRotation, deg)
	}
	return ((deg % 360) + 360) % 360, nil
}

// SafeAreaSize is the side of the square working canvas: twice the half
// diagonal of the source bounding box, rounded up, so any rotation fits.
func SafeAreaSize(w, h int) int {
	m := w
	if h > m {
		m = h
	}
	return 2 * int(math.Ceil(float64(m)/2*math.Sqrt2))
}

// RotatedSize is the bounding box of a w×h image after rotating by deg.
func RotatedSize(w, h, deg int) (int, int) {
	if deg == 90 || deg == 270 {
		return h, w
	}
	return w, h
}

// MatchesTargetAspect reports whether w×h is 139:166 within one pixel of rounding.
func MatchesTargetAspect(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	want := int(math.Round(float64(w) * AspectHeight / AspectWidth))
	d := h - want
	return d >= -1 && d <= 1
}

// RenderCroppedArtifact decodes src, rotates it clockwise by rotation degrees
// about the centre of a white square canvas of SafeAreaSize, extracts crop and
// returns it JPEG-encoded. The output has exactly crop.Width×crop.Height pixels.
func RenderCroppedArtifact(src []byte, crop Rect, rotation int) ([]byte, error) {
	rot, err := NormalizeRotation(rotation)
	if err != nil {
		return nil, err
	}
	if _, err := Probe(src); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	out, err := renderImage(img, crop, rot)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

func renderImage(img image.Image, crop Rect, rot int) (*image.NRGBA, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	// imaging rotates counter-clockwise; the editor rotates clockwise.
	var rotated image.Image
	switch rot {
	case 90:
		rotated = imaging.Rotate270(img)
	case 180:
		rotated = imaging.Rotate180(img)
	case 270:
		rotated = imaging.Rotate90(img)
	default:
		rotated = img
	}

	safe := SafeAreaSize(w, h)
	rw, rh := RotatedSize(w, h, rot)
	origin := image.Pt((safe-rw)/2, (safe-rh)/2)
	canvas := imaging.Paste(imaging.New(safe, safe, color.White), rotated, origin)

	region := image.Rect(origin.X+crop.X, origin.Y+crop.Y, origin.X+crop.X+crop.Width, origin.Y+crop.Y+crop.Height)
	if crop.Width <= 0 || crop.Height <= 0 || !region.In(canvas.Bounds()) {
		return nil, fmt.Errorf("%w: %s on %dx%d canvas", ErrCropOutOfBounds, crop, safe, safe)
	}
	return imaging.Crop(canvas, region), nil
}
