package processor

import (
	"bytes"
	"image"
)

// Encoder writes img at a lossy quality in 1..100.
type Encoder interface {
	Encode(buf *bytes.Buffer, img image.Image, quality int) error
}

// SearchParams bound the descending quality search.
type SearchParams struct {
	Start  int
	Floor  int
	Step   int
	Budget int64
}

// SearchOutcome is the encoding the search settled on.
type SearchOutcome struct {
	Data      []byte
	Quality   int
	Attempts  int
	BudgetMet bool
}

// SearchQuality encodes img at Start, Start-Step, ... while the quality stays
// at or above Floor, and stops at the first encoding within Budget. When no
// level fits, the smallest encoding seen is returned with BudgetMet false.
// A Start below Floor is tried once.
func SearchQuality(img image.Image, enc Encoder, p SearchParams) (SearchOutcome, error) {
	var best SearchOutcome
	var buf bytes.Buffer

	for q := p.Start; ; q -= p.Step {
		buf.Reset()
		if err := enc.Encode(&buf, img, q); err != nil {
			return SearchOutcome{}, ioFailure("encode", err)
		}
		best.Attempts++

		if best.Data == nil || buf.Len() < len(best.Data) {
			best.Data = append(best.Data[:0], buf.Bytes()...)
			best.Quality = q
		}

		// Every earlier attempt was over budget, so this one is also the smallest.
		if int64(buf.Len()) <= p.Budget {
			best.BudgetMet = true
			return best, nil
		}

		if p.Step <= 0 || q-p.Step < p.Floor {
			break
		}
	}

	return best, nil
}
