package dialect

import (
	"context"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// CWB reads Taiwan Central Weather Bureau files: "#Key: value" header lines up
// to "#Data", then rows of four 10-character columns (time, Z, NS, EW). Times
// are local (UTC+8).
type CWB struct{}

const (
	cwbMarker     = "#Earthquake Information"
	cwbDataMarker = "#Data"
	cwbTimeLayout = "2006/01/02-15:04:05"
	cwbUTCOffset  = 8 * time.Hour
	cwbCols       = 4
	cwbColWidth   = 10
	cwbNetwork    = "TW"
	cwbSource     = "Taiwan Central Weather Bureau"
)

// cwbChannels pairs output channel codes with their data column.
var cwbChannels = []struct {
	code string
	col  int
}{
	{domain.ChannelVertical, 1},
	{domain.ChannelNorth, 2},
	{domain.ChannelEast, 3},
}

func (CWB) Name() string { return "cwb" }

func (CWB) Sniff(fsys fs.FS, name string) bool {
	head := headLines(fsys, name, 1)
	return len(head) == 1 && strings.HasPrefix(head[0], cwbMarker)
}

func (CWB) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	lines, err := readLines(fsys, name)
	if err != nil {
		return domain.Decoded{}, err
	}
	c := newCursor(ctx, name, lines)

	hdr := make(map[string]string)
	for {
		l, err := c.next("header")
		if err != nil {
			return domain.Decoded{}, c.malformed("header", "no %s line", cwbDataMarker)
		}
		if strings.HasPrefix(l, cwbDataMarker) {
			break
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(l, "#"), ":")
		if ok {
			hdr[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	base := baseRecord("cwb")
	base.Network = cwbNetwork
	base.Source = cwbSource
	base.ProcessLevel = domain.ProcessV1
	base.Station = hdr["StationCode"]
	base.Description = nameToken(hdr["StationName"])
	if base.Station == "" {
		return domain.Decoded{}, &domain.DecodeError{Kind: domain.ErrMalformedRecord, Path: name, Block: "header", Detail: "no StationCode"}
	}
	if kind := hdr["InstrumentKind"]; kind != "" {
		base.Comments = []string{"InstrumentKind: " + kind}
	}
	var warnings domain.Warnings
	if base.Latitude, err = cwbCoordinate(hdr, "StationLatitude", name, &warnings); err != nil {
		return domain.Decoded{}, err
	}
	if base.Longitude, err = cwbCoordinate(hdr, "StationLongitude", name, &warnings); err != nil {
		return domain.Decoded{}, err
	}

	start, ok := hdr["StartTime"]
	if !ok || start == "" {
		return domain.Decoded{}, &domain.DecodeError{Kind: domain.ErrMissingStartTime, Path: name, Block: "header"}
	}
	local, err := time.Parse(cwbTimeLayout, start)
	if err != nil {
		return domain.Decoded{}, &domain.DecodeError{Kind: domain.ErrMalformedRecord, Path: name, Block: "header", Detail: "StartTime: " + err.Error()}
	}
	base.StartTime = local.Add(-cwbUTCOffset).Truncate(time.Microsecond)

	rate, err := cwbFloat(hdr, "SampleRate")
	if err != nil {
		return domain.Decoded{}, inPath(err, name)
	}
	if rate <= 0 {
		return domain.Decoded{}, &domain.DecodeError{Kind: domain.ErrMalformedRecord, Path: name, Block: "header", Detail: "SampleRate must be positive"}
	}
	base.Sampling = domain.SampleRate(rate)

	columns := make([][]float64, cwbCols)
	for row := 0; c.more(); row++ {
		if row%ctxCheckRows == 0 {
			if err := c.checkpoint(); err != nil {
				return domain.Decoded{}, err
			}
		}
		l, _ := c.next("data")
		if strings.TrimSpace(l) == "" {
			continue
		}
		vals, err := splitFixed(l, cwbCols, cwbColWidth)
		if err != nil {
			return domain.Decoded{}, domain.Malformed(name, c.pos, "data", "%v", err)
		}
		if len(vals) != cwbCols {
			return domain.Decoded{}, domain.Malformed(name, c.pos, "data", "want %d columns, found %d", cwbCols, len(vals))
		}
		for i, v := range vals {
			columns[i] = append(columns[i], v)
		}
	}
	if len(columns[0]) == 0 {
		return domain.Decoded{}, c.malformed("data", "no samples")
	}

	if length, err := cwbFloat(hdr, "RecordLength"); err == nil && length > 0 {
		got := float64(len(columns[0])) / rate
		if math.Abs(got-length) > 1/rate {
			warnings.Add(domain.WarnRecordLength, name, "RecordLength %gs, samples span %gs", length, got)
		}
	}
	out := domain.Decoded{Warnings: warnings}

	if !opts.wantUnits(domain.UnitsAcceleration) {
		return out, nil
	}
	for _, ch := range cwbChannels {
		rec := base
		rec.Channel = ch.code
		rec.Samples = columns[ch.col]
		out.Group = append(out.Group, rec)
	}
	return out, nil
}

// cwbCoordinate reads a station coordinate. A blank or absent value is NaN
// with a warning.
func cwbCoordinate(hdr map[string]string, key, path string, warnings *domain.Warnings) (float64, error) {
	if hdr[key] == "" {
		warnings.Add(domain.WarnMissingCoordinate, path, "no %s, location unknown", key)
		return math.NaN(), nil
	}
	v, err := cwbFloat(hdr, key)
	if err != nil {
		return 0, inPath(err, path)
	}
	return v, nil
}

func cwbFloat(hdr map[string]string, key string) (float64, error) {
	v, ok := hdr[key]
	if !ok {
		return 0, &domain.DecodeError{Kind: domain.ErrMalformedRecord, Block: "header", Detail: "no " + key}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &domain.DecodeError{Kind: domain.ErrMalformedRecord, Block: "header", Detail: key + ": " + err.Error()}
	}
	return f, nil
}
