package dialect

import (
	"context"
	"io/fs"
	"strconv"
	"strings"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// SMC reads USGS SMC corrected accelerograms: one channel per file with an
// 11-line text header, 6 rows of 8 ten-character integers, 10 rows of 5
// fifteen-character reals, the declared comment lines, then data eight to a line.
type SMC struct{}

const (
	smcMarker     = "2 CORRECTED ACCELEROGRAM"
	smcTextRows   = 11
	smcIntRows    = 6
	smcIntPerRow  = 8
	smcIntWidth   = 10
	smcRealRows   = 10
	smcRealPerRow = 5
	smcRealWidth  = 15
	smcDataCols   = 8
	smcDataWidth  = 10
	smcSource     = "USGS SMC archive"
)

// Integer header indices. Index 0 holds the file's missing-value sentinel.
const (
	smcIntMissing     = 0
	smcIntYear        = 1
	smcIntYearDay     = 2
	smcIntHour        = 3
	smcIntMinute      = 4
	smcIntSecond      = 5
	smcIntMillis      = 6
	smcIntVertical    = 12
	smcIntHorizontal  = 13
	smcIntComments    = 15
	smcIntPoints      = 16
	smcIntProblem     = 17
	smcIntStructure   = 18
	smcIntStationCode = 29
)

// Real header indices.
const (
	smcRealRate = 1
	smcRealLat  = 10
	smcRealLon  = 11
)

func (SMC) Name() string { return "smc" }

func (SMC) Sniff(fsys fs.FS, name string) bool {
	head := headLines(fsys, name, 1)
	return len(head) == 1 && strings.Contains(head[0], smcMarker)
}

func (SMC) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	lines, err := readLines(fsys, name)
	if err != nil {
		return domain.Decoded{}, err
	}
	c := newCursor(ctx, name, lines)

	text, err := c.take(smcTextRows, "text header")
	if err != nil {
		return domain.Decoded{}, err
	}
	intLine := c.line()
	ints, err := c.fixedInts(smcIntRows, smcIntPerRow, smcIntWidth, "integer header")
	if err != nil {
		return domain.Decoded{}, err
	}
	if err := c.requireValues(len(ints), smcIntStationCode+1, "integer header"); err != nil {
		return domain.Decoded{}, err
	}
	missing := ints[smcIntMissing]

	if ints[smcIntProblem] == 1 {
		return domain.Decoded{}, domain.Rejected(name, intLine+2, "integer header", "record carries a problem flag")
	}
	if ints[smcIntStructure] != missing {
		return domain.Decoded{}, domain.Rejected(name, intLine+2, "integer header", "structure type %d: not a free-field sensor", ints[smcIntStructure])
	}

	rec := baseRecord("smc")
	rec.Network = domain.UnknownNetwork
	rec.Source = smcSource
	rec.ProcessLevel = domain.ProcessV2
	if s := strings.TrimSpace(text[2]); len(s) >= 4 {
		rec.Station = s[:4]
	} else {
		rec.Station = strconv.Itoa(ints[smcIntStationCode])
	}

	year, yday := ints[smcIntYear], ints[smcIntYearDay]
	if year == missing || yday == missing || allZero(year, yday) {
		return domain.Decoded{}, &domain.DecodeError{Kind: domain.ErrMissingStartTime, Path: name, Line: intLine, Block: "integer header"}
	}
	millis := ints[smcIntMillis]
	if millis == missing {
		millis = 0
	}
	rec.StartTime, err = ordinalTime(year, yday, ints[smcIntHour], ints[smcIntMinute], ints[smcIntSecond], millis)
	if err != nil {
		return domain.Decoded{}, domain.Malformed(name, intLine, "integer header", "start time: %v", err)
	}

	if v := ints[smcIntVertical]; v == 0 || v == 180 {
		rec.Channel = domain.ChannelVertical
	} else {
		rec.Channel = domain.HorizontalChannel(float64(ints[smcIntHorizontal]))
	}

	realLine := c.line()
	reals, err := c.fixedFloats(smcRealRows, smcRealPerRow, smcRealWidth, "real header")
	if err != nil {
		return domain.Decoded{}, err
	}
	if err := c.requireValues(len(reals), smcRealLon+1, "real header"); err != nil {
		return domain.Decoded{}, err
	}
	rate := reals[smcRealRate]
	if rate <= 0 {
		return domain.Decoded{}, domain.Malformed(name, realLine, "real header", "sample rate %v", rate)
	}
	rec.Sampling = domain.SampleRate(rate)
	rec.Latitude = reals[smcRealLat]
	rec.Longitude = reals[smcRealLon]

	if rec.Comments, err = c.take(max(ints[smcIntComments], 0), "comments"); err != nil {
		return domain.Decoded{}, err
	}
	if rec.Samples, err = c.fixedSeries(ints[smcIntPoints], smcDataCols, smcDataWidth, "data"); err != nil {
		return domain.Decoded{}, err
	}

	var out domain.Decoded
	if opts.wantUnits(rec.Units) {
		out.Group = domain.RecordingGroup{rec}
	}
	return out, nil
}
