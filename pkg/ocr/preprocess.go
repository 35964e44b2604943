package ocr

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// Fixed preprocessing policy tuned for receipt photos: the payable total
// almost always sits in the lower two thirds of the frame, printed small.
const (
	cropTopFraction = 0.35
	upscaleFactor   = 2
	contrastFactor  = 1.5
	jpegQuality     = 90
)

// ErrDecode is returned when the input cannot be decoded as an image.
// Recognition must not be attempted after it.
var ErrDecode = errors.New("cannot decode image")

// PrepareReceipt normalizes a decoded receipt photo for text recognition:
// drops the top 35% (headers, logos), doubles the remaining region in both
// axes, then grayscales by channel average with a linear contrast stretch
// around mid-gray. The result stays in a color encoding with equal channels.
func PrepareReceipt(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()
	top := int(float64(h) * cropTopFraction)
	cropped := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y+top, b.Min.X+w, b.Min.Y+h))
	scaled := imaging.Resize(cropped, cropped.Bounds().Dx()*upscaleFactor, cropped.Bounds().Dy()*upscaleFactor, imaging.Lanczos)

	pix := scaled.Pix
	for i := 0; i < len(pix); i += 4 {
		avg := (int(pix[i]) + int(pix[i+1]) + int(pix[i+2])) / 3
		v := int(float64(avg-128)*contrastFactor) + 128
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		pix[i] = uint8(v)
		pix[i+1] = uint8(v)
		pix[i+2] = uint8(v)
	}
	return scaled
}

// NormalizeFile decodes path, applies PrepareReceipt and writes the result
// as a JPEG temp file for the recognition engine. The caller removes the
// returned file when recognition is done.
func NormalizeFile(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	norm := PrepareReceipt(img)
	tmpFile, err := os.CreateTemp("", "receipt-*.jpg")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	if err := imaging.Save(norm, tmp, imaging.JPEGQuality(jpegQuality)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("save normalized image: %w", err)
	}
	return tmp, nil
}
