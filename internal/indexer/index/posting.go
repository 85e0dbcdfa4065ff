package index

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
)

// StatsFlags selects the positional statistics Compute fills in. Count and
// density are always computed.
type StatsFlags struct {
	Average   bool
	Median    bool
	Variance  bool
	Positions bool
}

// AllStats enables every statistic.
func AllStats() StatsFlags {
	return StatsFlags{Average: true, Median: true, Variance: true, Positions: true}
}

// FlagsFromConfig maps the configured statistics toggles.
func FlagsFromConfig(c config.StatisticsConfig) StatsFlags {
	return StatsFlags{
		Average:   c.Average,
		Median:    c.Median,
		Variance:  c.Variance,
		Positions: c.Positions,
	}
}

// Compute derives the occurrence statistics of one token in one document from
// its raw positions. Positions are offsets into a document of docTokenCount
// tokens. Average and median are normalized to [0,1]; variance is over the
// raw offsets. Steepness needs both average and median.
func Compute(positions []int, docTokenCount int, flags StatsFlags) model.Occurrence {
	occ := model.Occurrence{Count: len(positions)}
	if len(positions) == 0 {
		return occ
	}
	if docTokenCount > 0 {
		occ.Density = float64(len(positions)) / float64(docTokenCount)
	}

	sorted := slices.Clone(positions)
	slices.Sort(sorted)
	span := float64(docTokenCount - 1)
	normalize := func(p int) float64 {
		if span <= 0 {
			return 0
		}
		return min(float64(p)/span, 1)
	}

	if flags.Average {
		sum := 0.0
		for _, p := range sorted {
			sum += normalize(p)
		}
		occ.PositionAverage = sum / float64(len(sorted))
	}
	if flags.Median {
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			occ.PositionMedian = normalize(sorted[mid])
		} else {
			occ.PositionMedian = (normalize(sorted[mid-1]) + normalize(sorted[mid])) / 2
		}
	}
	if flags.Variance {
		mean := 0.0
		for _, p := range sorted {
			mean += float64(p)
		}
		mean /= float64(len(sorted))
		for _, p := range sorted {
			d := float64(p) - mean
			occ.PositionVariance += d * d
		}
		occ.PositionVariance /= float64(len(sorted))
	}
	if flags.Average && flags.Median {
		occ.Steepness = occ.PositionAverage - occ.PositionMedian
	}
	if flags.Positions {
		occ.Positions = sorted
	}
	return occ
}
