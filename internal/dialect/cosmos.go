package dialect

import (
	"context"
	"io/fs"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// COSMOS reads COSMOS V0/V1 files: one or more stacked channel blocks, each a
// text header followed by integer, real, comment and data blocks. Every numeric
// block is introduced by a one-line sub-header declaring its value count and
// Fortran layout.
type COSMOS struct{}

const cosmosTextRows = 13

var (
	cosmosBuckets = domain.OrientationBuckets{VerticalAtOrAbove: 400}

	// cosmosLayoutRe captures columns and field width from "format=(8f10.5)".
	cosmosLayoutRe = regexp.MustCompile(`\(?(\d+)[a-z](\d+)`)
)

// Integer header indices.
const (
	cosmosIntUnits       = 1
	cosmosIntStationType = 18
	cosmosIntYear        = 39
	cosmosIntMonth       = 41
	cosmosIntDay         = 42
	cosmosIntHour        = 43
	cosmosIntMinute      = 44
	cosmosIntAngle       = 53
)

// Real header indices.
const (
	cosmosRealLat      = 0
	cosmosRealLon      = 1
	cosmosRealSeconds  = 29
	cosmosRealInterval = 33
)

func (COSMOS) Name() string { return "cosmos" }

func (COSMOS) Sniff(fsys fs.FS, name string) bool {
	head := headLines(fsys, name, 1)
	if len(head) == 0 {
		return false
	}
	l := strings.ToLower(head[0])
	return strings.Contains(l, "corrected acceleration") && strings.Contains(l, "(format v")
}

func (COSMOS) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	lines, err := readLines(fsys, name)
	if err != nil {
		return domain.Decoded{}, err
	}
	c := newCursor(ctx, name, lines)
	if !c.more() {
		return domain.Decoded{}, c.malformed("text header", "no channel blocks")
	}

	var out domain.Decoded
	for c.more() {
		if err := c.checkpoint(); err != nil {
			return domain.Decoded{}, err
		}
		rec, stationType, err := decodeCOSMOSBlock(c)
		if err != nil {
			return domain.Decoded{}, err
		}
		if !opts.wantStationType(stationType) || !opts.wantUnits(rec.Units) {
			continue
		}
		out.Group = append(out.Group, rec)
	}
	return out, nil
}

type cosmosSubHeader struct {
	count   int
	cols    int
	width   int
	comment bool
}

// readCOSMOSSubHeader parses lines like
// "100 Integer-header values follow on 10 lines, Format= (10I8)".
func readCOSMOSSubHeader(c *cursor, block string) (cosmosSubHeader, error) {
	l, err := c.next(block)
	if err != nil {
		return cosmosSubHeader{}, err
	}
	fields := strings.Fields(l)
	if len(fields) == 0 {
		return cosmosSubHeader{}, domain.Malformed(c.path, c.pos, block, "empty sub-header")
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return cosmosSubHeader{}, domain.Malformed(c.path, c.pos, block, "value count %q", fields[0])
	}

	compact := strings.ToLower(strings.ReplaceAll(l, " ", ""))
	if strings.Contains(compact, "comment") {
		return cosmosSubHeader{count: count, comment: true}, nil
	}
	idx := strings.Index(compact, "format=")
	if idx < 0 {
		return cosmosSubHeader{}, domain.Malformed(c.path, c.pos, block, "sub-header has no format")
	}
	m := cosmosLayoutRe.FindStringSubmatch(compact[idx+len("format="):])
	if m == nil {
		return cosmosSubHeader{}, domain.Malformed(c.path, c.pos, block, "unreadable format %q", compact[idx:])
	}
	cols, _ := strconv.Atoi(m[1])
	width, _ := strconv.Atoi(m[2])
	return cosmosSubHeader{count: count, cols: cols, width: width}, nil
}

func readCOSMOSValues(c *cursor, block string) ([]float64, error) {
	sh, err := readCOSMOSSubHeader(c, block)
	if err != nil {
		return nil, err
	}
	if sh.comment {
		return nil, c.malformed(block, "expected numeric block, found comments")
	}
	return c.fixedSeries(sh.count, sh.cols, sh.width, block)
}

func decodeCOSMOSBlock(c *cursor) (domain.ChannelRecord, int, error) {
	textLine := c.line()
	text, err := c.take(cosmosTextRows, "text header")
	if err != nil {
		return domain.ChannelRecord{}, 0, err
	}

	rec := baseRecord("cosmos")
	rec.ProcessLevel = domain.ProcessV1
	if strings.Contains(strings.ToLower(text[0]), "uncorrected") {
		rec.ProcessLevel = domain.ProcessRaw
	}
	if err := parseCOSMOSStation(text[4], &rec); err != nil {
		return domain.ChannelRecord{}, 0, domain.Malformed(c.path, textLine+4, "text header", "%v", err)
	}
	rec.Source = rec.Network

	ints, err := readCOSMOSValues(c, "integer header")
	if err != nil {
		return domain.ChannelRecord{}, 0, err
	}
	if err := c.requireValues(len(ints), cosmosIntAngle+1, "integer header"); err != nil {
		return domain.ChannelRecord{}, 0, err
	}
	reals, err := readCOSMOSValues(c, "real header")
	if err != nil {
		return domain.ChannelRecord{}, 0, err
	}
	if err := c.requireValues(len(reals), cosmosRealInterval+2, "real header"); err != nil {
		return domain.ChannelRecord{}, 0, err
	}

	comments, err := readCOSMOSSubHeader(c, "comments")
	if err != nil {
		return domain.ChannelRecord{}, 0, err
	}
	if !comments.comment {
		return domain.ChannelRecord{}, 0, c.malformed("comments", "expected comment sub-header")
	}
	if rec.Comments, err = c.take(comments.count, "comments"); err != nil {
		return domain.ChannelRecord{}, 0, err
	}

	rec.Samples, err = readCOSMOSValues(c, "data")
	if err != nil {
		return domain.ChannelRecord{}, 0, err
	}
	if err := c.skip(1, "end of record"); err != nil {
		return domain.ChannelRecord{}, 0, err
	}

	switch int(ints[cosmosIntUnits]) {
	case 1:
		rec.Units = domain.UnitsAcceleration
	case 2:
		rec.Units = domain.UnitsVelocity
	default:
		return domain.ChannelRecord{}, 0, domain.Malformed(c.path, textLine, "integer header", "units code %v", ints[cosmosIntUnits])
	}

	year, month, day := int(ints[cosmosIntYear]), int(ints[cosmosIntMonth]), int(ints[cosmosIntDay])
	hour, minute := int(ints[cosmosIntHour]), int(ints[cosmosIntMinute])
	seconds := reals[cosmosRealSeconds]
	if allZero(year, month, day, hour, minute) && seconds == 0 {
		return domain.ChannelRecord{}, 0, &domain.DecodeError{Kind: domain.ErrMissingStartTime, Path: c.path, Line: textLine, Block: "integer header"}
	}
	if rec.StartTime, err = civilTime(year, month, day, hour, minute, seconds); err != nil {
		return domain.ChannelRecord{}, 0, domain.Malformed(c.path, textLine, "integer header", "start time: %v", err)
	}

	delta := reals[cosmosRealInterval]
	if delta <= 0 {
		return domain.ChannelRecord{}, 0, domain.Malformed(c.path, textLine, "real header", "sample interval %v", delta)
	}
	rec.Sampling = domain.SampleInterval(delta)
	rec.Latitude = reals[cosmosRealLat]
	rec.Longitude = reals[cosmosRealLon]
	rec.Channel = cosmosBuckets.Channel(ints[cosmosIntAngle])

	return rec, int(ints[cosmosIntStationType]), nil
}

// parseCOSMOSStation reads "... code: NET-STA ...: Station Name" into the record.
func parseCOSMOSStation(l string, rec *domain.ChannelRecord) error {
	idx := strings.Index(strings.ToLower(l), "code:")
	if idx < 0 {
		return errNoStationCode
	}
	rest := strings.TrimSpace(l[idx+len("code:"):])
	token, _, _ := strings.Cut(rest, " ")
	network, station, ok := strings.Cut(token, "-")
	if !ok || network == "" || station == "" {
		return errNoStationCode
	}
	rec.Network = network
	rec.Station = station
	if parts := strings.Split(l, ":"); len(parts) >= 3 {
		rec.Description = nameToken(parts[len(parts)-1])
	}
	return nil
}
