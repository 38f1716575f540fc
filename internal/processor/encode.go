package processor

import (
	"bytes"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// JPEGEncoder encodes baseline JPEG.
type JPEGEncoder struct{}

func (JPEGEncoder) Encode(buf *bytes.Buffer, img image.Image, quality int) error {
	return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// WebPEncoder encodes lossy WebP through libwebp.
type WebPEncoder struct{}

func (WebPEncoder) Encode(buf *bytes.Buffer, img image.Image, quality int) error {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return err
	}
	return webp.Encode(buf, img, opts)
}

func encodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
}
