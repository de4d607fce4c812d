package fingerprint

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned when frame or photo data cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

// Image is an encoded image ready to be sent to the embedding server,
// together with its pixel dimensions.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// DecodeFrame decodes a base64 camera frame. A data URL prefix
// ("data:image/jpeg;base64,") is accepted and stripped.
func DecodeFrame(frame string) ([]byte, error) {
	frame = strings.TrimSpace(frame)
	if frame == "" {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidImage)
	}
	if strings.HasPrefix(frame, "data:") {
		if i := strings.Index(frame, ","); i >= 0 {
			frame = frame[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		// Some clients strip padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(frame, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidImage)
	}
	return data, nil
}

// PrepareImage decodes an image and shrinks it to fit within maxSize while
// keeping the aspect ratio. Images already small enough are passed through
// unchanged. A maxSize of zero or less disables resizing.
func PrepareImage(data []byte, maxSize int) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	// Check if resizing is needed.
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return &Image{Data: data, Width: width, Height: height}, nil
	}

	// Calculate new dimensions.
	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return &Image{Data: buf.Bytes(), Width: newWidth, Height: newHeight}, nil
}
