package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

type decodeFunc func(r *bytes.Reader) (image.Image, error)

var decoders = map[string]decodeFunc{
	"jpg":  func(r *bytes.Reader) (image.Image, error) { return jpeg.Decode(r) },
	"png":  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
	"tif":  func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
	"bmp":  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
	"webp": func(r *bytes.Reader) (image.Image, error) { return webp.Decode(r) },
}

// LoadImage reads and decodes a rendered image. The format is taken from the
// file content, not its extension. TGA has no magic number, so anything
// unrecognised is tried as TGA last.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes an in-memory image of any supported format.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}

	kind, _ := filetype.Match(data)
	if decode, ok := decoders[kind.Extension]; ok && filetype.IsImage(data) {
		return decode(bytes.NewReader(data))
	}

	img, err := tga.Decode(bytes.NewReader(data))
	if err != nil {
		if kind != filetype.Unknown {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, kind.MIME.Value)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}
