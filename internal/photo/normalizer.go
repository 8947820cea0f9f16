// Package photo normalizes uploaded images: orientation fix, dimension
// bound, transcode to a size-efficient format, and a hard output ceiling.
// The stage is stateless and idempotent for a given input.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	_ "github.com/gen2brain/heic" // HEIC/HEIF decode registration
	_ "golang.org/x/image/webp"   // WEBP decode registration
)

const (
	// MaxInputBytes bounds worst-case decode cost; checked before any decode work.
	MaxInputBytes = 20 << 20
	// MaxOutputBytes is the hard ceiling on what gets stored.
	MaxOutputBytes = 3 << 20

	maxWidth  = 1600
	maxPixels = 50_000_000

	jpegQuality         = 82
	jpegFallbackQuality = 72
)

var (
	ErrNotImage              = errors.New("not an image")
	ErrTooLarge              = errors.New("image exceeds upload limit")
	ErrTooManyPixels         = errors.New("image has too many pixels")
	ErrUnsupported           = errors.New("unsupported image data")
	ErrTooLargeAfterCompress = errors.New("image too large after compression")
)

// Result is the normalized photo ready for upload.
type Result struct {
	Data        []byte
	Ext         string // includes leading dot
	ContentType string
}

// Normalize decodes, orients, bounds, and re-encodes an uploaded image.
// contentType is the client-declared MIME type; it selects the output
// encoding but decoding sniffs the actual bytes.
func Normalize(data []byte, contentType string) (Result, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if !strings.HasPrefix(ct, "image/") {
		return Result{}, ErrNotImage
	}
	if len(data) > MaxInputBytes {
		return Result{}, ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return Result{}, ErrTooManyPixels
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	out, ext, outType, err := encodeFor(ct, img)
	if err != nil {
		return Result{}, err
	}
	return enforceOutputCeiling(img, out, ext, outType)
}

// enforceOutputCeiling applies the hard output size limit: an oversized
// encoding gets one lower-quality JPEG retry; still-oversized output is a
// terminal failure and nothing is stored.
func enforceOutputCeiling(img image.Image, out []byte, ext, contentType string) (Result, error) {
	if len(out) <= MaxOutputBytes {
		return Result{Data: out, Ext: ext, ContentType: contentType}, nil
	}
	retry, err := encodeJPEG(img, jpegFallbackQuality)
	if err != nil {
		return Result{}, err
	}
	if len(retry) > MaxOutputBytes {
		return Result{}, ErrTooLargeAfterCompress
	}
	return Result{Data: retry, Ext: ".jpg", ContentType: "image/jpeg"}, nil
}

// encodeFor picks the output encoding by source type. PNG sources get both
// a JPEG and a PNG candidate and keep the smaller one; transparency-free
// PNGs usually lose to JPEG.
func encodeFor(ct string, img image.Image) ([]byte, string, string, error) {
	switch {
	case isHEIC(ct):
		out, err := encodeJPEG(img, jpegQuality)
		return out, ".jpg", "image/jpeg", err
	case ct == "image/png":
		var jpegOut, pngOut []byte
		g := new(errgroup.Group)
		g.Go(func() error {
			var err error
			jpegOut, err = encodeJPEG(img, jpegQuality)
			return err
		})
		g.Go(func() error {
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
				return fmt.Errorf("encode png: %w", err)
			}
			pngOut = buf.Bytes()
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, "", "", err
		}
		if len(pngOut) < len(jpegOut) {
			return pngOut, ".png", "image/png", nil
		}
		return jpegOut, ".jpg", "image/jpeg", nil
	case ct == "image/webp":
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, &webp.Options{Quality: jpegQuality}); err != nil {
			return nil, "", "", fmt.Errorf("encode webp: %w", err)
		}
		return buf.Bytes(), ".webp", "image/webp", nil
	default:
		out, err := encodeJPEG(img, jpegQuality)
		return out, ".jpg", "image/jpeg", err
	}
}

func isHEIC(ct string) bool {
	return strings.Contains(ct, "heic") || strings.Contains(ct, "heif") || strings.Contains(ct, "quicktime")
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
