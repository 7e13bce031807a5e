package domain

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ExtractStats counts what Extract kept and why it dropped the rest.
type ExtractStats struct {
	Series    int
	Unmapped  []string // site codes with no river in the index
	Samples   int
	Kept      int
	OffHour   int
	Malformed int
	NoData    int
}

// Add accumulates other into s.
func (s *ExtractStats) Add(other ExtractStats) {
	s.Series += other.Series
	s.Unmapped = append(s.Unmapped, other.Unmapped...)
	s.Samples += other.Samples
	s.Kept += other.Kept
	s.OffHour += other.OffHour
	s.Malformed += other.Malformed
	s.NoData += other.NoData
}

// Extract reshapes a water report into hourly observations keyed by river ID.
//
// Series whose site code is not in the index are skipped and listed in
// ExtractStats.Unmapped. Within a series, samples off the hour, samples with
// an unparseable value or timestamp, and samples equal to the series'
// noDataValue are dropped individually. A mapped series with nothing left
// still gets an entry with an empty slice.
func Extract(report WaterReport, index SiteIndex) (ObservationSet, ExtractStats) {
	set := make(ObservationSet, len(report.Value.TimeSeries))
	var stats ExtractStats

	for _, ts := range report.Value.TimeSeries {
		stats.Series++
		siteCode := ts.SiteCode()
		riverID, ok := index.RiverID(siteCode)
		if !ok {
			stats.Unmapped = append(stats.Unmapped, siteCode)
			continue
		}

		samples := ts.Samples()
		unit := ts.Variable.Unit.UnitCode
		observations := make([]Observation, 0, len(samples)/4+1)

		for _, s := range samples {
			stats.Samples++
			at, err := ParseSampleTime(s.DateTime)
			if err != nil {
				stats.Malformed++
				continue
			}
			if at.Minute() != 0 {
				stats.OffHour++
				continue
			}
			v, err := parseSampleValue(s.Value)
			if err != nil {
				stats.Malformed++
				continue
			}
			if nd := ts.Variable.NoDataValue; nd != nil && v == *nd {
				stats.NoData++
				continue
			}

			observations = append(observations, Observation{
				RiverID:   riverID,
				Timestamp: at.Truncate(time.Hour),
				Value:     FormatDischarge(v),
				Unit:      unit,
			})
			stats.Kept++
		}

		set[riverID] = observations
	}

	return set, stats
}

// ParseSampleTime parses a USGS dateTime (RFC 3339 with offset, optional
// fractional seconds) and returns it in UTC.
func ParseSampleTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatDischarge renders a discharge value with exactly two fractional
// digits. The result is the two-digit decimal nearest to the exact binary
// value; an exact tie (e.g. 0.125) rounds away from zero.
func FormatDischarge(v float64) string {
	hundredths, tie := tieHundredths(v)
	if !tie {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}

	digits := hundredths.String()
	if len(digits) < 3 {
		digits = strings.Repeat("0", 3-len(digits)) + digits
	}
	out := digits[:len(digits)-2] + "." + digits[len(digits)-2:]
	if v < 0 {
		return "-" + out
	}
	return out
}

// tieHundredths reports whether |v| lies exactly halfway between two
// hundredths and, if so, returns the larger one scaled by 100.
func tieHundredths(v float64) (*big.Int, bool) {
	f := new(big.Float).SetPrec(256).SetFloat64(math.Abs(v))
	f.Mul(f, big.NewFloat(1000))
	thousandths, acc := f.Int(nil)
	if acc != big.Exact {
		return nil, false
	}
	if new(big.Int).Mod(thousandths, big.NewInt(10)).Int64() != 5 {
		return nil, false
	}
	hundredths := new(big.Int).Quo(thousandths, big.NewInt(10))
	return hundredths.Add(hundredths, big.NewInt(1)), true
}

func parseSampleValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
