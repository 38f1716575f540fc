package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"

	"wio/pkg/imgutil"
)

// Reducer shrinks one image file towards a byte budget.
type Reducer struct {
	JPEG       Encoder
	WebP       Encoder
	Quantizer  Quantizer
	AutoOrient bool
	Log        zerolog.Logger
}

// NewReducer wires the production encoders.
func NewReducer(q Quantizer, autoOrient bool, log zerolog.Logger) *Reducer {
	return &Reducer{
		JPEG:       JPEGEncoder{},
		WebP:       WebPEncoder{},
		Quantizer:  q,
		AutoOrient: autoOrient,
		Log:        log,
	}
}

// Reduce processes task.Path and reports what was written. Failures come back
// as *ReductionError.
func (r *Reducer) Reduce(ctx context.Context, task ImageTask) (Result, error) {
	res, err := r.reduce(ctx, task)
	if err != nil {
		return Result{}, newReductionError(task.Path, err)
	}
	return res, nil
}

func (r *Reducer) reduce(ctx context.Context, task ImageTask) (Result, error) {
	path := task.Path
	res := Result{Source: path, Output: path}

	kind := imgutil.KindFromExt(path)
	if kind == imgutil.KindUnknown {
		return res, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	srcInfo, err := os.Stat(path)
	if err != nil {
		return res, ioFailure("stat", err)
	}
	res.OriginalBytes = srcInfo.Size()

	img, err := r.decode(path)
	if err != nil {
		return res, err
	}
	res.OriginalSize = img.Bounds().Size()

	if task.Backup {
		bak, created, err := EnsureBackup(path)
		if err != nil {
			return res, err
		}
		res.BackupPath = bak
		if created {
			r.Log.Debug().Str("path", path).Str("backup", bak).Msg("backup created")
		}
	}

	if task.resizeRequested() {
		img = fit(img, task.MaxWidth, task.MaxHeight)
	}
	res.FinalSize = img.Bounds().Size()

	switch {
	case task.ConvertWebP && kind != imgutil.KindWebP:
		err = r.convertWebP(task, img, srcInfo.Mode(), &res)
	case kind == imgutil.KindJPEG:
		err = r.recompress(task, img, r.JPEG, srcInfo.Mode(), &res)
	case kind == imgutil.KindWebP:
		err = r.recompress(task, img, r.WebP, srcInfo.Mode(), &res)
	case kind == imgutil.KindPNG:
		err = r.reducePNG(ctx, task, img, srcInfo.Mode(), &res)
	}
	if err != nil {
		return res, err
	}

	outInfo, err := os.Stat(res.Output)
	if err != nil {
		return res, ioFailure("stat output", err)
	}
	res.Bytes = outInfo.Size()
	if res.Quality == 0 {
		res.BudgetMet = res.Bytes <= task.BudgetBytes()
	}

	return res, nil
}

func (r *Reducer) decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioFailure("open", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		if sniffed, sniffErr := imgutil.SniffFile(path); sniffErr == nil && sniffed != imgutil.KindFromExt(path) {
			return nil, ioFailure("decode", fmt.Errorf("content looks like %s: %w", sniffed, err))
		}
		return nil, ioFailure("decode", err)
	}

	if !r.AutoOrient {
		return img, nil
	}
	orientation, err := readOrientation(f)
	if err != nil {
		r.Log.Debug().Err(err).Str("path", path).Msg("exif unreadable, keeping stored orientation")
	}
	return applyOrientation(img, orientation), nil
}

func (r *Reducer) recompress(task ImageTask, img image.Image, enc Encoder, mode fs.FileMode, res *Result) error {
	out, err := SearchQuality(img, enc, task.searchParams())
	if err != nil {
		return err
	}
	if err := writeReplacing(task.Path, out.Data, mode); err != nil {
		return err
	}

	res.Quality = out.Quality
	res.Attempts = out.Attempts
	res.BudgetMet = out.BudgetMet
	if !out.BudgetMet {
		r.Log.Info().Str("path", task.Path).Int("quality", out.Quality).Int("bytes", len(out.Data)).
			Int64("budget", task.BudgetBytes()).Msg("quality floor reached above budget")
	}
	return nil
}

func (r *Reducer) convertWebP(task ImageTask, img image.Image, mode fs.FileMode, res *Result) error {
	quality := task.searchParams().Start

	var buf bytes.Buffer
	if err := r.WebP.Encode(&buf, img, quality); err != nil {
		return ioFailure("encode webp", err)
	}

	output := WebPPath(task.Path)
	if err := writeReplacing(output, buf.Bytes(), mode); err != nil {
		return err
	}

	res.Output = output
	res.Quality = quality
	res.Attempts = 1
	res.BudgetMet = int64(buf.Len()) <= task.BudgetBytes()
	return nil
}

func (r *Reducer) reducePNG(ctx context.Context, task ImageTask, img image.Image, mode fs.FileMode, res *Result) error {
	tmp := PNGTempPath(task.Path)

	if err := writePNG(tmp, img, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	qerr := fmt.Errorf("%w: no quantizer configured", ErrExternalTool)
	if r.Quantizer != nil {
		qerr = r.Quantizer.Quantize(ctx, tmp, task.Path)
	}

	if qerr == nil {
		res.PNGOutcome = PNGQuantized
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			r.Log.Warn().Err(err).Str("path", tmp).Msg("temporary file left behind")
		}
		return nil
	}

	r.Log.Warn().Err(qerr).Str("path", task.Path).Msg("png quantization failed, keeping lossless re-encode")
	if err := replaceFile(tmp, task.Path); err != nil {
		_ = os.Remove(tmp)
		return ioFailure("replace", err)
	}
	res.PNGOutcome = PNGReencoded
	res.FallbackReason = qerr.Error()
	return nil
}

// WebPPath is the sibling a converted image is written to.
func WebPPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".webp"
}

// PNGTempPath is the lossless intermediate handed to the quantizer.
func PNGTempPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + TempSuffix
}

func writePNG(path string, img image.Image, mode fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return ioFailure("create temp", err)
	}
	if err := encodePNG(f, img); err != nil {
		_ = f.Close()
		return ioFailure("encode png", err)
	}
	if err := f.Close(); err != nil {
		return ioFailure("close temp", err)
	}
	return nil
}
