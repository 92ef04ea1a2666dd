package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// maxUploadedSide caps the longer side of images sent to the model server.
// Detection quality is unaffected well above this size while upload time for
// phone-camera originals drops by an order of magnitude.
const maxUploadedSide = 1280

// prepareImage downscales oversized images before upload, keeping aspect
// ratio, and re-encodes them as JPEG. Images that already fit (or that the
// stdlib cannot decode, e.g. exotic formats the model server may still
// accept) pass through untouched.
func prepareImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxUploadedSide && height <= maxUploadedSide {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxUploadedSide
		newHeight = int(float64(height) * float64(maxUploadedSide) / float64(width))
	} else {
		newHeight = maxUploadedSide
		newWidth = int(float64(width) * float64(maxUploadedSide) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
