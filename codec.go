package pixelsort

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Register the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

// StdioPath names stdin or stdout instead of a file.
const StdioPath = "-"

// JPEGQuality is the quality used when encoding JPEG output.
const JPEGQuality = 95

// Decode reads and decodes an image file, applying its EXIF orientation.
// PNG, JPEG, GIF, BMP, TIFF and WebP are supported.
func Decode(path string) (*PixelBuffer, error) {
	if path == StdioPath {
		return DecodeReader(os.Stdin, path)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return FromImage(img), nil
}

// DecodeReader decodes an image from r. name is used in errors only.
func DecodeReader(r io.Reader, name string) (*PixelBuffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}
	return FromImage(img), nil
}

// Encode writes pb to path in the format its extension names. The image
// is written to a temporary file next to path and renamed into place, so
// a failure never leaves a partial output file.
func Encode(pb *PixelBuffer, path string) error {
	if err := pb.Validate(); err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	if path == StdioPath {
		return EncodeWriter(os.Stdout, pb, imaging.PNG, path)
	}

	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return &EncodeError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if err := EncodeWriter(tmp, pb, format, path); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &EncodeError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &EncodeError{Path: path, Err: err}
	}
	return nil
}

// EncodeWriter encodes pb to w. name is used in errors only.
func EncodeWriter(w io.Writer, pb *PixelBuffer, format imaging.Format, name string) error {
	err := imaging.Encode(w, pb.ToImage(), format, imaging.JPEGQuality(JPEGQuality))
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		}
		return &EncodeError{Path: name, Err: err}
	}
	return nil
}
