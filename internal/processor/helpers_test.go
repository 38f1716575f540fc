package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// patternImage draws a gradient with some per-pixel noise so encoders have
// detail to spend bytes on.
func patternImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := uint8(rng.Intn(48))
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x*255/w) + n,
				G: uint8(y*255/h) + n,
				B: uint8((x+y)*255/(w+h)) ^ n,
				A: 0xff,
			})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	writeFile(t, path, buf.Bytes())
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writePNGFile(t *testing.T, path string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	writeFile(t, path, buf.Bytes())
	return buf.Bytes()
}

func touch(t *testing.T, path string) {
	t.Helper()
	writeFile(t, path, []byte("x"))
}

func decodeConfig(t *testing.T, path string) (image.Config, string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode config %s: %v", path, err)
	}
	return cfg, format
}

// withOrientation splices an APP1 EXIF segment holding only an Orientation
// tag right after the SOI marker of a baseline JPEG.
func withOrientation(jpegData []byte, orientation uint16) []byte {
	var tiff bytes.Buffer
	tiff.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(1))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0112))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(3))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(1))
	_ = binary.Write(&tiff, binary.LittleEndian, orientation)
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}

// sizeEncoder produces a payload whose length is a function of quality and
// records every quality it was asked for.
type sizeEncoder struct {
	size  func(q int) int
	asked []int
	err   error
}

func (e *sizeEncoder) Encode(buf *bytes.Buffer, _ image.Image, quality int) error {
	e.asked = append(e.asked, quality)
	if e.err != nil {
		return e.err
	}
	buf.Write(bytes.Repeat([]byte{byte(quality)}, e.size(quality)))
	return nil
}

// copyQuantizer stands in for pngquant by copying src to dst.
type copyQuantizer struct{ calls int }

func (q *copyQuantizer) Quantize(_ context.Context, src, dst string) error {
	q.calls++
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

type failingQuantizer struct{ err error }

func (q failingQuantizer) Quantize(context.Context, string, string) error {
	return q.err
}

// tinyWebP is a 1x1 lossy WebP.
const tinyWebP = "UklGRiIAAABXRUJQVlA4IBYAAAAwAQCdASoBAAEADsD+JaQAA3AAAAAA"

func writeWebP(t *testing.T, path string) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(tinyWebP)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	writeFile(t, path, data)
	return data
}

func testReducer(q Quantizer) *Reducer {
	return &Reducer{
		JPEG:       JPEGEncoder{},
		WebP:       &sizeEncoder{size: func(q int) int { return q * 10 }},
		Quantizer:  q,
		AutoOrient: true,
		Log:        zerolog.Nop(),
	}
}
