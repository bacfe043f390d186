package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

// DefaultLogoSize bounds the longest side of a token logo in pixels
const DefaultLogoSize uint = 512

// NormalizeLogo downscales a logo to fit maxSide and re-encodes it as PNG.
// Images already within bounds are returned as they were.
func NormalizeLogo(data []byte, maxSide uint) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: cannot decode logo: %v", ErrUnsupportedMedia, err)
	}

	bounds := img.Bounds()
	if uint(bounds.Dx()) <= maxSide && uint(bounds.Dy()) <= maxSide {
		return data, "image/" + format, nil
	}

	thumb := resize.Thumbnail(maxSide, maxSide, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, "", fmt.Errorf("failed to encode logo: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
