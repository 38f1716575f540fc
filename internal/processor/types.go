package processor

import "image"

const (
	DefaultQuality = 85
	QualityFloor   = 10
	QualityStep    = 5

	BackupSuffix = ".bak"
	TempSuffix   = ".wio_tmp.png"
)

// ImageTask describes one file's reduction. It is built once per file and
// shared read-only between goroutines.
type ImageTask struct {
	Path         string
	TargetKB     int
	MaxWidth     int // 0 keeps the original width as the bound
	MaxHeight    int // 0 keeps the original height as the bound
	Quality      int
	Backup       bool
	ConvertWebP  bool
	Parallel     bool
	QualityFloor int // 0 means QualityFloor
	QualityStep  int // 0 means QualityStep
}

// BudgetBytes is the target size in bytes.
func (t ImageTask) BudgetBytes() int64 {
	return int64(t.TargetKB) * 1024
}

func (t ImageTask) resizeRequested() bool {
	return t.MaxWidth > 0 || t.MaxHeight > 0
}

func (t ImageTask) searchParams() SearchParams {
	p := SearchParams{
		Start:  t.Quality,
		Floor:  t.QualityFloor,
		Step:   t.QualityStep,
		Budget: t.BudgetBytes(),
	}
	if p.Start <= 0 {
		p.Start = DefaultQuality
	}
	if p.Floor <= 0 {
		p.Floor = QualityFloor
	}
	if p.Step <= 0 {
		p.Step = QualityStep
	}
	return p
}

type PNGOutcome string

const (
	PNGQuantized PNGOutcome = "quantized"
	PNGReencoded PNGOutcome = "reencoded"
)

// Result is produced once for every file that was reduced successfully.
type Result struct {
	Source         string
	Output         string // differs from Source when converted to WebP
	OriginalBytes  int64
	Bytes          int64
	Quality        int // 0 on the PNG path
	Attempts       int
	BudgetMet      bool
	PNGOutcome     PNGOutcome
	FallbackReason string
	BackupPath     string
	OriginalSize   image.Point
	FinalSize      image.Point
}

// SizeKB is the final size in KiB.
func (r Result) SizeKB() float64 {
	return float64(r.Bytes) / 1024
}

// Summary is derived from the collected outcomes once every task is done.
type Summary struct {
	Total       int
	Processed   int
	Failed      int
	Skipped     int
	OverBudget  int
	BytesBefore int64
	BytesAfter  int64
	Results     []Result
	Errors      []*ReductionError
}

// BytesSaved is the aggregate reduction across successful files.
func (s Summary) BytesSaved() int64 {
	return s.BytesBefore - s.BytesAfter
}

// Merge folds another batch into s.
func (s *Summary) Merge(o Summary) {
	s.Total += o.Total
	s.Processed += o.Processed
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.OverBudget += o.OverBudget
	s.BytesBefore += o.BytesBefore
	s.BytesAfter += o.BytesAfter
	s.Results = append(s.Results, o.Results...)
	s.Errors = append(s.Errors, o.Errors...)
}

func (s *Summary) add(o outcome) {
	if o.err != nil {
		s.Failed++
		s.Errors = append(s.Errors, o.err)
		return
	}
	s.Processed++
	s.BytesBefore += o.res.OriginalBytes
	s.BytesAfter += o.res.Bytes
	if !o.res.BudgetMet {
		s.OverBudget++
	}
	s.Results = append(s.Results, o.res)
}

// ProgressUpdate is streamed to the reporting sink while a batch runs.
// Exactly one of Result and Err is set on a completion update.
type ProgressUpdate struct {
	TotalDelta      int
	ProcessedDelta  int
	ErrorDelta      int
	BytesSavedDelta int64
	Result          *Result
	Err             *ReductionError
}

type outcome struct {
	res Result
	err *ReductionError
}
