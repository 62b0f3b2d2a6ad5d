package render

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"
)

// ImageSource shows a still image, scaled by Blit.
type ImageSource struct {
	img image.Image
}

// LoadImage decodes a PNG, JPEG or GIF file.
func LoadImage(path string) (*ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &ImageSource{img: img}, nil
}

// NewImageSource shows img.
func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{img: img}
}

func (s *ImageSource) Frame(time.Duration, image.Point) (image.Image, error) {
	return s.img, nil
}
