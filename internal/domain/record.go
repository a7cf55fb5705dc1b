package domain

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"
)

// Canonical channel codes. Every decoded record carries exactly one of these.
const (
	ChannelNorth    = "HHN"
	ChannelEast     = "HHE"
	ChannelVertical = "HHZ"
)

// CanonicalChannels lists the orthogonal codes in resolution order.
var CanonicalChannels = []string{ChannelNorth, ChannelEast, ChannelVertical}

const (
	// UnknownLocation is the two-character placeholder used when a file has no location code.
	UnknownLocation = "--"
	// UnknownNetwork is used when a network code cannot be established.
	UnknownNetwork = "UNK"
)

// IsCanonicalChannel reports whether code is HHN, HHE or HHZ.
func IsCanonicalChannel(code string) bool {
	return slices.Contains(CanonicalChannels, code)
}

// Units tags the physical quantity of a sample sequence.
type Units string

const (
	UnitsAcceleration Units = "acc"  // cm/s²
	UnitsVelocity     Units = "vel"  // cm/s
	UnitsDisplacement Units = "disp" // cm
)

// ParseUnits accepts the short tags used in configuration ("acc", "vel", "disp").
func ParseUnits(s string) (Units, bool) {
	switch u := Units(strings.ToLower(strings.TrimSpace(s))); u {
	case UnitsAcceleration, UnitsVelocity, UnitsDisplacement:
		return u, true
	default:
		return "", false
	}
}

// ProcessLevel distinguishes raw and corrected volumes.
type ProcessLevel string

const (
	ProcessUnknown ProcessLevel = ""
	ProcessRaw     ProcessLevel = "V0" // uncorrected, instrument counts
	ProcessV1      ProcessLevel = "V1" // uncorrected, physical units
	ProcessV2      ProcessLevel = "V2" // corrected
	ProcessV3      ProcessLevel = "V3" // response spectra
)

// Sampling holds the sample rate and interval of a record. Only one of the two
// is ever read from a file; the other is its reciprocal, computed once here.
type Sampling struct {
	rate     float64
	interval float64
}

// SampleRate builds a Sampling where the rate (Hz) is authoritative.
func SampleRate(hz float64) Sampling {
	return Sampling{rate: hz, interval: 1 / hz}
}

// SampleInterval builds a Sampling where the interval (seconds) is authoritative.
func SampleInterval(seconds float64) Sampling {
	return Sampling{rate: 1 / seconds, interval: seconds}
}

// Rate returns the sample rate in Hz.
func (s Sampling) Rate() float64 { return s.rate }

// Interval returns the sample interval in seconds.
func (s Sampling) Interval() float64 { return s.interval }

// Valid reports whether the sampling is positive and finite.
func (s Sampling) Valid() bool {
	return s.rate > 0 && s.interval > 0 && !math.IsInf(s.rate, 0) && !math.IsInf(s.interval, 0)
}

// ChannelRecord is one continuous single-component time series plus metadata.
// Records are immutable once decoded; consumers that transform samples must copy.
type ChannelRecord struct {
	Network  string
	Station  string
	Location string
	Channel  string

	StartTime time.Time
	Sampling  Sampling
	Samples   []float64

	Units        Units
	ProcessLevel ProcessLevel

	Latitude    float64
	Longitude   float64
	Description string // free-text station name
	Source      string // free-text network/agency description
	Format      string // dialect the record was decoded from

	// Comments holds comment-block lines verbatim, when the dialect has one.
	Comments []string
}

// NumSamples returns the sample count; it is always len(Samples).
func (r *ChannelRecord) NumSamples() int { return len(r.Samples) }

// EndTime is the time of the last sample.
func (r *ChannelRecord) EndTime() time.Time {
	if len(r.Samples) == 0 {
		return r.StartTime
	}
	span := float64(len(r.Samples)-1) * r.Sampling.Interval()
	return r.StartTime.Add(time.Duration(math.Round(span * float64(time.Second))))
}

// ID renders NET.STA.LOC.CHA.
func (r *ChannelRecord) ID() string {
	return strings.Join([]string{r.Network, r.Station, r.Location, r.Channel}, ".")
}

// SameEvent reports whether two records share network, station and start time,
// and, when withEnd is set, end time.
func (r *ChannelRecord) SameEvent(o *ChannelRecord, withEnd bool) bool {
	if r.Network != o.Network || r.Station != o.Station || !r.StartTime.Equal(o.StartTime) {
		return false
	}
	return !withEnd || r.EndTime().Equal(o.EndTime())
}

// Duplicates reports whether o is indistinguishable from r: same identity, start,
// end, channel and an identical sample sequence.
func (r *ChannelRecord) Duplicates(o *ChannelRecord) bool {
	if !r.SameEvent(o, true) || r.Channel != o.Channel {
		return false
	}
	if len(r.Samples) != len(o.Samples) {
		return false
	}
	for i, v := range r.Samples {
		if math.Float64bits(v) != math.Float64bits(o.Samples[i]) && v != o.Samples[i] {
			return false
		}
	}
	return true
}

// WithChannel returns a shallow copy of r with a new channel code. Samples are
// shared because records never mutate them.
func (r ChannelRecord) WithChannel(code string) ChannelRecord {
	r.Channel = code
	return r
}

// RecordingGroup is an ordered set of records believed to come from one recording episode.
type RecordingGroup []ChannelRecord

// Key identifies the group by its first record: NET.STA and start time.
func (g RecordingGroup) Key() string {
	if len(g) == 0 {
		return ""
	}
	return g[0].Network + "." + g[0].Station + "." + g[0].StartTime.UTC().Format(time.RFC3339Nano)
}

// Channels lists the channel codes in group order.
func (g RecordingGroup) Channels() []string {
	out := make([]string, len(g))
	for i := range g {
		out[i] = g[i].Channel
	}
	return out
}

// Decoded is what a dialect produces for one input file.
type Decoded struct {
	Format   string
	Path     string
	Group    RecordingGroup
	Warnings []Warning
}

// FileRef names an input file handed to the pipeline by a source.
type FileRef struct {
	Path   string
	Format string // optional forced dialect
	Commit func(ctx context.Context) error

	Topic     string
	Partition int
	Offset    int64
	Received  time.Time
}
