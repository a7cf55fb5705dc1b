package dialect

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// GeoNet reads GNS Science V1A/V2A accelerograms. A file holds exactly three
// channel blocks: 16 text lines, a 10x10 whitespace-separated real header, then
// 8-character data fields ten to a line. V2 files follow the acceleration with
// velocity and displacement series, which are skipped.
type GeoNet struct{}

const (
	geonetTextRows    = 16
	geonetHeaderVals  = 100
	geonetBlocks      = 3
	geonetDataCols    = 10
	geonetDataWidth   = 8
	geonetNetwork     = "NZ"
	geonetSource      = "GNS Science"
	geonetMMToCM      = 10.0
	geonetVerticalCmp = "Up"
)

// Real header indices (row*10 + column).
const (
	geonetYear      = 8
	geonetMonth     = 9
	geonetDay       = 18
	geonetHour      = 19
	geonetLatDeg    = 20
	geonetLatMin    = 21
	geonetLatSec    = 22
	geonetLonDeg    = 23
	geonetLonMin    = 24
	geonetLonSec    = 25
	geonetV1Points  = 30
	geonetV2Points  = 33
	geonetV2Vel     = 34
	geonetV2Disp    = 35
	geonetMinute    = 38
	geonetMillis    = 39
	geonetV1Rate    = 40
	geonetV2Delta   = 65
	geonetMaxHeader = geonetV2Delta
)

var geonetCompassRe = regexp.MustCompile(`^([NS])(\d+(?:\.\d+)?)([EW])$`)

func (GeoNet) Name() string { return "geonet" }

func (GeoNet) Sniff(fsys fs.FS, name string) bool {
	head := headLines(fsys, name, 1)
	if len(head) == 0 || !strings.Contains(head[0], "GNS Science") {
		return false
	}
	return strings.Contains(head[0], "Corrected accelerogram") || strings.Contains(head[0], "Uncorrected accelerogram")
}

func (GeoNet) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	lines, err := readLines(fsys, name)
	if err != nil {
		return domain.Decoded{}, err
	}
	c := newCursor(ctx, name, lines)

	records := make([]domain.ChannelRecord, 0, geonetBlocks)
	for range geonetBlocks {
		if err := c.checkpoint(); err != nil {
			return domain.Decoded{}, err
		}
		rec, err := decodeGeoNetBlock(c)
		if err != nil {
			return domain.Decoded{}, err
		}
		records = append(records, rec)
	}

	resolved, err := domain.ResolveChannelConflicts(records)
	if err != nil {
		return domain.Decoded{}, inPath(err, name)
	}
	var out domain.Decoded
	if opts.wantUnits(domain.UnitsAcceleration) {
		out.Group = resolved
	}
	return out, nil
}

func decodeGeoNetBlock(c *cursor) (domain.ChannelRecord, error) {
	textLine := c.line()
	text, err := c.take(geonetTextRows, "text header")
	if err != nil {
		return domain.ChannelRecord{}, err
	}

	rec := baseRecord("geonet")
	rec.Network = geonetNetwork
	rec.Source = geonetSource
	rec.ProcessLevel = domain.ProcessV2
	if strings.Contains(strings.ToLower(text[0]), "uncorrected") {
		rec.ProcessLevel = domain.ProcessV1
	}
	stationFields := strings.Fields(text[1])
	if len(stationFields) < 2 {
		return domain.ChannelRecord{}, domain.Malformed(c.path, textLine+1, "text header", "no station code")
	}
	rec.Station = stationFields[1]
	rec.Description = nameToken(text[2])
	componentFields := strings.Fields(text[12])
	if len(componentFields) < 2 {
		return domain.ChannelRecord{}, domain.Malformed(c.path, textLine+12, "text header", "no component")
	}
	if rec.Channel, err = geonetChannel(componentFields[1]); err != nil {
		return domain.ChannelRecord{}, domain.Malformed(c.path, textLine+12, "text header", "%v", err)
	}

	hdrLine := c.line()
	hdr, err := c.fieldSeries(geonetHeaderVals, "real header")
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	if err := c.requireValues(len(hdr), geonetMaxHeader+1, "real header"); err != nil {
		return domain.ChannelRecord{}, err
	}

	millis := hdr[geonetMillis]
	fields := []int{int(hdr[geonetYear]), int(hdr[geonetMonth]), int(hdr[geonetDay]), int(hdr[geonetHour]), int(hdr[geonetMinute])}
	if allZero(fields...) && millis == 0 {
		return domain.ChannelRecord{}, &domain.DecodeError{Kind: domain.ErrMissingStartTime, Path: c.path, Line: hdrLine, Block: "real header"}
	}
	rec.StartTime, err = civilTime(fields[0], fields[1], fields[2], fields[3], fields[4], millis/1000)
	if err != nil {
		return domain.ChannelRecord{}, domain.Malformed(c.path, hdrLine, "real header", "start time: %v", err)
	}

	rec.Latitude = -(hdr[geonetLatDeg] + (hdr[geonetLatMin]+hdr[geonetLatSec]/60)/60)
	rec.Longitude = hdr[geonetLonDeg] + (hdr[geonetLonMin]+hdr[geonetLonSec]/60)/60

	var npts, skipRows int
	if rec.ProcessLevel == domain.ProcessV1 {
		npts = int(hdr[geonetV1Points])
		if hdr[geonetV1Rate] <= 0 {
			return domain.ChannelRecord{}, domain.Malformed(c.path, hdrLine, "real header", "sample rate %v", hdr[geonetV1Rate])
		}
		rec.Sampling = domain.SampleRate(hdr[geonetV1Rate])
	} else {
		npts = int(hdr[geonetV2Points])
		if hdr[geonetV2Delta] <= 0 {
			return domain.ChannelRecord{}, domain.Malformed(c.path, hdrLine, "real header", "sample interval %v", hdr[geonetV2Delta])
		}
		rec.Sampling = domain.SampleInterval(hdr[geonetV2Delta])
		skipRows = geonetRows(int(hdr[geonetV2Vel])) + geonetRows(int(hdr[geonetV2Disp]))
	}

	raw, err := c.fixedSeries(npts, geonetDataCols, geonetDataWidth, "data")
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	rec.Samples = make([]float64, len(raw))
	for i, v := range raw {
		rec.Samples[i] = v / geonetMMToCM
	}
	if err := c.skip(skipRows, "velocity and displacement"); err != nil {
		return domain.ChannelRecord{}, err
	}
	return rec, nil
}

func geonetRows(n int) int {
	return (n + geonetDataCols - 1) / geonetDataCols
}

// geonetChannel maps a compass component such as "N28W" or "Up" to a channel code.
func geonetChannel(component string) (string, error) {
	if strings.EqualFold(component, geonetVerticalCmp) {
		return domain.ChannelVertical, nil
	}
	m := geonetCompassRe.FindStringSubmatch(strings.ToUpper(component))
	if m == nil {
		return "", fmt.Errorf("unreadable component %q", component)
	}
	angle, _ := strconv.ParseFloat(m[2], 64)
	switch m[1] + m[3] {
	case "NW":
		angle = 360 - angle
	case "SE":
		angle = 180 - angle
	case "SW":
		angle = 180 + angle
	}
	return domain.HorizontalChannel(angle), nil
}
