package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReduceJPEGInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	original := writeJPEG(t, path, patternImage(400, 300, 1), 98)

	res, err := testReducer(nil).Reduce(context.Background(), ImageTask{
		Path:     path,
		TargetKB: 1000,
		Quality:  85,
		Backup:   true,
	})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}

	if res.Output != path || res.Source != path {
		t.Fatalf("expected in-place output, got %s", res.Output)
	}
	if res.Quality != 85 || res.Attempts != 1 || !res.BudgetMet {
		t.Fatalf("unexpected search result: %+v", res)
	}
	if res.OriginalBytes != int64(len(original)) {
		t.Fatalf("original size %d, want %d", res.OriginalBytes, len(original))
	}
	if res.BackupPath != path+BackupSuffix {
		t.Fatalf("backup path %q", res.BackupPath)
	}

	bak, err := os.ReadFile(res.BackupPath)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(bak, original) {
		t.Fatalf("backup does not hold the original bytes")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != res.Bytes {
		t.Fatalf("result bytes %d, file has %d", res.Bytes, info.Size())
	}

	cfg, format := decodeConfig(t, path)
	if format != "jpeg" || cfg.Width != 400 || cfg.Height != 300 {
		t.Fatalf("unexpected output %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestReduceResizesToWidth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wide.jpeg")
	writeJPEG(t, path, patternImage(400, 300, 2), 90)

	res, err := testReducer(nil).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 500, MaxWidth: 200})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if res.OriginalSize != image.Pt(400, 300) || res.FinalSize != image.Pt(200, 150) {
		t.Fatalf("sizes %v -> %v", res.OriginalSize, res.FinalSize)
	}
	if _, err := os.Stat(path + BackupSuffix); !os.IsNotExist(err) {
		t.Fatalf("no backup was requested, stat err = %v", err)
	}

	cfg, _ := decodeConfig(t, path)
	if cfg.Width != 200 || cfg.Height != 150 {
		t.Fatalf("file is %dx%d", cfg.Width, cfg.Height)
	}
}

func TestReduceOverBudgetStillSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noisy.jpg")
	writeJPEG(t, path, patternImage(400, 300, 3), 95)

	res, err := testReducer(nil).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 1})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if res.BudgetMet {
		t.Fatalf("a 1KB budget cannot be met, got %d bytes", res.Bytes)
	}
	if res.Quality != QualityFloor {
		t.Fatalf("expected quality floor, got %d", res.Quality)
	}
}

func TestReducePNGQuantized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	writePNGFile(t, path, patternImage(64, 64, 4))

	q := &copyQuantizer{}
	res, err := testReducer(q).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if q.calls != 1 {
		t.Fatalf("quantizer called %d times", q.calls)
	}
	if res.PNGOutcome != PNGQuantized || res.FallbackReason != "" {
		t.Fatalf("unexpected outcome %q (%s)", res.PNGOutcome, res.FallbackReason)
	}
	if res.Quality != 0 {
		t.Fatalf("png path has no quality, got %d", res.Quality)
	}
	if _, err := os.Stat(PNGTempPath(path)); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}
	if _, format := decodeConfig(t, path); format != "png" {
		t.Fatalf("output is %s", format)
	}
}

func TestReducePNGFallsBackWhenQuantizerFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	writePNGFile(t, path, patternImage(64, 64, 5))

	boom := errors.New("pngquant exploded")
	res, err := testReducer(failingQuantizer{err: boom}).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100})
	if err != nil {
		t.Fatalf("quantizer failure must not fail the file: %v", err)
	}
	if res.PNGOutcome != PNGReencoded {
		t.Fatalf("expected reencoded, got %q", res.PNGOutcome)
	}
	if !strings.Contains(res.FallbackReason, "pngquant exploded") {
		t.Fatalf("fallback reason %q", res.FallbackReason)
	}
	if _, err := os.Stat(PNGTempPath(path)); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}
	cfg, format := decodeConfig(t, path)
	if format != "png" || cfg.Width != 64 {
		t.Fatalf("output is %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestReducePNGWithoutQuantizer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.png")
	writePNGFile(t, path, patternImage(32, 32, 6))

	res, err := testReducer(nil).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if res.PNGOutcome != PNGReencoded || res.FallbackReason == "" {
		t.Fatalf("expected a recorded fallback, got %+v", res)
	}
}

func TestReduceConvertsToWebPSibling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	original := writeJPEG(t, path, patternImage(120, 80, 7), 90)

	r := testReducer(nil)
	res, err := r.Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100, Quality: 70, ConvertWebP: true})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}

	want := filepath.Join(dir, "photo.webp")
	if res.Output != want || WebPPath(path) != want {
		t.Fatalf("output %s, want %s", res.Output, want)
	}
	if res.Quality != 70 || res.Attempts != 1 {
		t.Fatalf("conversion is a single encode at the requested quality: %+v", res)
	}
	if asked := r.WebP.(*sizeEncoder).asked; len(asked) != 1 || asked[0] != 70 {
		t.Fatalf("webp encoder asked %v", asked)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatalf("original must be left untouched")
	}
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("webp sibling: %v", err)
	}
	if info.Size() != res.Bytes {
		t.Fatalf("webp sibling has %d bytes, result says %d", info.Size(), res.Bytes)
	}
}

func TestReduceUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anim.gif")
	touch(t, path)

	_, err := testReducer(nil).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100, Backup: true})
	var re *ReductionError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReductionError, got %T %v", err, err)
	}
	if re.Path != path || re.Kind != KindUnsupportedFormat || !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("unexpected error %+v", re)
	}
	if _, err := os.Stat(path + BackupSuffix); !os.IsNotExist(err) {
		t.Fatalf("no backup may be made for an unsupported file")
	}
}

func TestReduceCorruptImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(path, []byte("definitely not a jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := testReducer(nil).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100, Backup: true})
	if KindOf(err) != KindIOFailure || !errors.Is(err, ErrIOFailure) {
		t.Fatalf("expected IOFailure, got %v", err)
	}
	if _, err := os.Stat(path + BackupSuffix); !os.IsNotExist(err) {
		t.Fatalf("backup created for an undecodable file")
	}
}

func TestReduceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.jpg")
	_, err := testReducer(nil).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100})
	if KindOf(err) != KindIOFailure {
		t.Fatalf("expected IOFailure, got %v", err)
	}
}

func TestReduceAppliesOrientation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portrait.jpg")

	var buf bytes.Buffer
	if err := (JPEGEncoder{}).Encode(&buf, patternImage(40, 20, 8), 90); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, withOrientation(buf.Bytes(), 6), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := testReducer(nil).Reduce(context.Background(), ImageTask{Path: path, TargetKB: 100})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if res.OriginalSize != image.Pt(20, 40) {
		t.Fatalf("expected rotated 20x40, got %v", res.OriginalSize)
	}
	cfg, _ := decodeConfig(t, path)
	if cfg.Width != 20 || cfg.Height != 40 {
		t.Fatalf("file is %dx%d", cfg.Width, cfg.Height)
	}

	noOrient := testReducer(nil)
	noOrient.AutoOrient = false
	other := filepath.Join(dir, "stored.jpg")
	if err := os.WriteFile(other, withOrientation(buf.Bytes(), 6), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err = noOrient.Reduce(context.Background(), ImageTask{Path: other, TargetKB: 100})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if res.OriginalSize != image.Pt(40, 20) {
		t.Fatalf("orientation applied while disabled: %v", res.OriginalSize)
	}
}

func TestReduceWebPInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sticker.webp")
	original := writeWebP(t, path)

	r := testReducer(nil)
	res, err := r.Reduce(context.Background(), ImageTask{
		Path:        path,
		TargetKB:    100,
		Quality:     80,
		Backup:      true,
		ConvertWebP: true,
	})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}

	if res.Output != path {
		t.Fatalf("webp source must be rewritten in place, got %s", res.Output)
	}
	if res.OriginalSize != image.Pt(1, 1) {
		t.Fatalf("decoded size %v", res.OriginalSize)
	}
	if res.Quality != 80 || res.Attempts != 1 || !res.BudgetMet {
		t.Fatalf("unexpected search result: %+v", res)
	}
	if asked := r.WebP.(*sizeEncoder).asked; len(asked) != 1 || asked[0] != 80 {
		t.Fatalf("webp encoder asked %v", asked)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{80}, 800)) || res.Bytes != 800 {
		t.Fatalf("output is not the encoder's payload (%d bytes)", len(got))
	}

	bak, err := os.ReadFile(path + BackupSuffix)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(bak, original) {
		t.Fatalf("backup does not hold the original webp")
	}
}
