package archive

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp decoding
)

// jpegQuality is used when re-encoding downscaled jpegs.
const jpegQuality = 90

// resizable reports whether we can re-encode the format after downscaling.
// webp decodes fine but has no encoder in the stdlib or x/image, so webp
// members are always copied verbatim.
func resizable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

// fitDimensions returns the target size for an image whose smaller dimension
// must not exceed maxSize, preserving aspect ratio. Returns ok=false when the
// image already fits.
func fitDimensions(w, h, maxSize int) (tw, th int, ok bool) {
	smaller := w
	if h < w {
		smaller = h
	}
	if maxSize < 1 || smaller <= maxSize {
		return w, h, false
	}
	scale := float64(maxSize) / float64(smaller)
	tw = int(float64(w)*scale + 0.5)
	th = int(float64(h)*scale + 0.5)
	if w <= h {
		tw = maxSize
	}
	if h <= w {
		th = maxSize
	}
	return tw, th, true
}

// downscale decodes r, scales it so the smaller dimension equals maxSize and
// encodes the result to w in the format matching name's extension. Returns
// copied=false with no bytes written when the image already fits; the caller
// then copies the original bytes instead.
func downscale(r io.ReadSeeker, w io.Writer, name string, maxSize int) (resized bool, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return false, fmt.Errorf("decoding %s header: %w", name, err)
	}
	if _, _, ok := fitDimensions(cfg.Width, cfg.Height, maxSize); !ok {
		return false, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}

	bounds := src.Bounds()
	tw, th, _ := fitDimensions(bounds.Dx(), bounds.Dy(), maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(w, dst, &jpeg.Options{Quality: jpegQuality})
	case ".png":
		err = png.Encode(w, dst)
	case ".gif":
		err = gif.Encode(w, dst, nil)
	default:
		return false, fmt.Errorf("no encoder for %s", name)
	}
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", name, err)
	}
	return true, nil
}
