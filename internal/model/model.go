// Package model defines the entities of the index: documents, tokens, the
// occurrences linking them, word lists and frequent queries.
package model

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// UnknownTokenCount marks a document whose content has not been processed.
const UnknownTokenCount = -1

// Rating defaults for a new document: an average of 50 out of 100.
const (
	DefaultRatingSum   = 50.0
	DefaultRatingCount = 1.0
	MaxRating          = 100.0
)

// Document is one indexed file. Its identity is (Checksum, Path).
type Document struct {
	ID          uint32
	Checksum    int64
	Path        string
	TokenCount  int
	OpenCount   int
	RatingSum   float64
	RatingCount float64
	ModifiedAt  time.Time
	// RawData is the content handed to the processor. It is never persisted.
	RawData []byte
}

// NewDocument returns an unprocessed document with the default rating.
func NewDocument(checksum int64, path string, modifiedAt time.Time) *Document {
	return &Document{
		Checksum:    checksum,
		Path:        path,
		TokenCount:  UnknownTokenCount,
		RatingSum:   DefaultRatingSum,
		RatingCount: DefaultRatingCount,
		ModifiedAt:  modifiedAt,
	}
}

// AverageRating returns RatingSum/RatingCount, or 0 for an unrated document.
func (d *Document) AverageRating() float64 {
	if d.RatingCount == 0 {
		return 0
	}
	return d.RatingSum / d.RatingCount
}

// Age returns how long before now the document was last modified.
func (d *Document) Age(now time.Time) time.Duration {
	return now.Sub(d.ModifiedAt)
}

func (d *Document) String() string {
	return fmt.Sprintf("document %d (%s, checksum %d)", d.ID, d.Path, d.Checksum)
}

// Heuristics are per-string likelihood scores in [0,1]. They depend only on
// the token text.
type Heuristics struct {
	// Casing is how plausible the mix of upper and lower case is.
	Casing float64
	// Garbage is how likely the text is noise rather than a word.
	Garbage float64
	// Phonetic is how pronounceable the text is.
	Phonetic float64
}

// Token is a unique unit of indexed text. The memoized statistics are owned
// by the lexicon; a Token must not be copied.
type Token struct {
	ID          uint32
	Text        string
	SearchCount int

	TotalOccurrences         Memo[int]
	DocumentFrequency        Memo[int]
	InverseDocumentFrequency Memo[float64]
	Heuristics               Memo[Heuristics]
}

func (t *Token) String() string {
	return fmt.Sprintf("token %d %q", t.ID, t.Text)
}

// Occurrence records the presence of a token in a document.
type Occurrence struct {
	TokenID          uint32
	DocumentID       uint32
	Count            int
	Density          float64
	PositionAverage  float64
	PositionMedian   float64
	PositionVariance float64
	Steepness        float64
	Positions        []int
}

// EncodePositions serializes token positions as a portable roaring bitmap.
// Positions within one document are distinct, so the encoding is lossless.
func EncodePositions(positions []int) ([]byte, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	bm := roaring.New()
	for _, p := range positions {
		if p < 0 {
			return nil, fmt.Errorf("negative position %d", p)
		}
		bm.Add(uint32(p))
	}
	bm.RunOptimize()
	data, err := bm.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("encoding positions: %w", err)
	}
	return data, nil
}

// DecodePositions reverses EncodePositions. Positions come back ascending.
func DecodePositions(data []byte) ([]int, error) {
	if len(data) == 0 {
		return nil, nil
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding positions: %w", err)
	}
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out, nil
}

// WordKind selects a word list.
type WordKind int

const (
	StopWord WordKind = iota + 1
	WhiteListWord
)

func (k WordKind) String() string {
	switch k {
	case StopWord:
		return "stop"
	case WhiteListWord:
		return "whitelist"
	default:
		return fmt.Sprintf("WordKind(%d)", int(k))
	}
}

// FrequentQuery is a previously issued, normalized query and how often it was
// issued.
type FrequentQuery struct {
	Query       string
	SearchCount int
}
