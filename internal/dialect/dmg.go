package dialect

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// DMG reads CSMIP/DMG Volume 2 files. Each channel block is a 25-line text
// header, a 7-line integer header (16I5), a 13-line real header (8F10), and up to
// three data subseries (acceleration, velocity, displacement), each introduced by
// a sub-header whose last token may declare its layout, e.g. "(8F10.3)". One end
// line closes the block. Volume 1 and 3 files are recognised but not decoded.
type DMG struct{}

const (
	dmgTextRows      = 25
	dmgIntRows       = 7
	dmgIntPerRow     = 16
	dmgIntWidth      = 5
	dmgRealRows      = 13
	dmgRealPerRow    = 8
	dmgRealWidth     = 10
	dmgHeaderVals    = 100
	dmgDefaultCols   = 8
	dmgDefaultWidth  = 10
	dmgTriggerLo     = 36
	dmgTriggerHi     = 80
	dmgYearPivot     = 50
	dmgSource        = "California Strong Motion Instrumentation Program"
	dmgMarkerV1      = "UNCORRECTED ACCELEROGRAM"
	dmgMarkerV2      = "CORRECTED ACCELEROGRAM"
	dmgMarkerV3      = "RESPONSE AND FOURIER AMPLITUDE SPECTRA"
	dmgFallbackBlock = "integer header"
)

// Integer header indices.
const (
	dmgIntHour    = 16
	dmgIntMinute  = 17
	dmgIntSecond  = 18
	dmgIntMonth   = 21
	dmgIntDay     = 22
	dmgIntYear    = 23
	dmgIntAngle   = 26
	dmgIntNameLen = 29
	dmgIntAccPts  = 52
	dmgIntVelPts  = 63
	dmgIntDispPts = 65
)

const dmgRealInterval = 60

var (
	dmgBuckets = domain.OrientationBuckets{VerticalAngles: []float64{500, 600}}

	dmgLayoutRe = regexp.MustCompile(`(?i)^\((\d+)F(\d+)(?:\.\d+)?\)$`)

	// dmgSubseries lists the subseries in file order with the integer header
	// index holding each point count.
	dmgSubseries = []struct {
		units domain.Units
		index int
	}{
		{domain.UnitsAcceleration, dmgIntAccPts},
		{domain.UnitsVelocity, dmgIntVelPts},
		{domain.UnitsDisplacement, dmgIntDispPts},
	}

	//go:embed fdsn_codes.txt
	fdsnCodesFile string

	fdsnCodes = sync.OnceValue(func() []string {
		var codes []string
		s := bufio.NewScanner(strings.NewReader(fdsnCodesFile))
		s.Scan() // column header
		for s.Scan() {
			if f := strings.Fields(s.Text()); len(f) > 0 {
				codes = append(codes, strings.ToUpper(f[0]))
			}
		}
		return codes
	})

	errTriggerTime = errors.New("trigger time")
)

func (DMG) Name() string { return "dmg" }

func (DMG) Sniff(fsys fs.FS, name string) bool {
	return dmgVolume(headLines(fsys, name, 1)) != domain.ProcessUnknown
}

// dmgVolume classifies a file by the leading marker of its first line.
func dmgVolume(head []string) domain.ProcessLevel {
	if len(head) == 0 {
		return domain.ProcessUnknown
	}
	l := strings.ToUpper(strings.TrimSpace(head[0]))
	switch {
	case strings.Contains(l, "GNS SCIENCE"):
		return domain.ProcessUnknown
	case strings.HasPrefix(l, dmgMarkerV1):
		return domain.ProcessV1
	case strings.HasPrefix(l, dmgMarkerV2):
		return domain.ProcessV2
	case strings.HasPrefix(l, dmgMarkerV3):
		return domain.ProcessV3
	default:
		return domain.ProcessUnknown
	}
}

func (DMG) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	lines, err := readLines(fsys, name)
	if err != nil {
		return domain.Decoded{}, err
	}
	if vol := dmgVolume(lines); vol != domain.ProcessV2 {
		return domain.Decoded{}, domain.Rejected(name, 1, "text header", "volume %s files are not decoded", vol)
	}

	codes := fdsnCodes()
	if len(opts.NetworkCodes) > 0 {
		codes = opts.NetworkCodes
	}

	c := newCursor(ctx, name, lines)
	var out domain.Decoded
	warned := false
	for c.more() {
		if err := c.checkpoint(); err != nil {
			return domain.Decoded{}, err
		}
		records, fellBack, err := decodeDMGBlock(c, codes, opts)
		if err != nil {
			return domain.Decoded{}, err
		}
		if fellBack && !warned {
			out.Warnings = append(out.Warnings, domain.Warning{
				Code:    domain.WarnTriggerTimeFallback,
				Path:    name,
				Message: "unreadable trigger time, start time taken from the integer header",
			})
			warned = true
		}
		out.Group = append(out.Group, records...)
	}
	return out, nil
}

func decodeDMGBlock(c *cursor, codes []string, opts Options) ([]domain.ChannelRecord, bool, error) {
	textLine := c.line()
	text, err := c.take(dmgTextRows, "text header")
	if err != nil {
		return nil, false, err
	}
	ints, err := c.fixedInts(dmgIntRows, dmgIntPerRow, dmgIntWidth, "integer header")
	if err != nil {
		return nil, false, err
	}
	ints = ints[:min(len(ints), dmgHeaderVals)]
	if err := c.requireValues(len(ints), dmgIntDispPts+1, "integer header"); err != nil {
		return nil, false, err
	}
	reals, err := c.fixedFloats(dmgRealRows, dmgRealPerRow, dmgRealWidth, "real header")
	if err != nil {
		return nil, false, err
	}
	if err := c.requireValues(len(reals), dmgRealInterval+1, "real header"); err != nil {
		return nil, false, err
	}

	base := baseRecord("dmg")
	base.ProcessLevel = domain.ProcessV2
	base.Source = dmgSource
	base.Station = strings.ReplaceAll(field(text[5], 12, 17), " ", "")
	if base.Station == "" {
		return nil, false, domain.Malformed(c.path, textLine+5, "text header", "no station code")
	}
	if base.Latitude, err = hemisphereValue(field(text[5], 21, 27)); err != nil {
		return nil, false, domain.Malformed(c.path, textLine+5, "text header", "latitude: %v", err)
	}
	if base.Longitude, err = hemisphereValue(field(text[5], 30, 37)); err != nil {
		return nil, false, domain.Malformed(c.path, textLine+5, "text header", "longitude: %v", err)
	}

	nameLen := min(max(ints[dmgIntNameLen], 0), len(text[6]))
	base.Description = nameToken(text[6][:nameLen])
	base.Network = dmgNetwork(text[1][min(nameLen, len(text[1])):], codes)

	fellBack := false
	base.StartTime, err = dmgTriggerTime(text[4], ints[dmgIntYear])
	if err != nil {
		fellBack = true
		t := []int{ints[dmgIntYear], ints[dmgIntMonth], ints[dmgIntDay], ints[dmgIntHour], ints[dmgIntMinute], ints[dmgIntSecond]}
		if allZero(t...) {
			return nil, false, &domain.DecodeError{Kind: domain.ErrMissingStartTime, Path: c.path, Line: textLine + 4, Block: dmgFallbackBlock}
		}
		if base.StartTime, err = civilTime(t[0], t[1], t[2], t[3], t[4], float64(t[5])); err != nil {
			return nil, false, domain.Malformed(c.path, textLine, dmgFallbackBlock, "start time: %v", err)
		}
	}

	delta := reals[dmgRealInterval]
	if delta <= 0 {
		return nil, false, domain.Malformed(c.path, textLine, "real header", "sample interval %v", delta)
	}
	base.Sampling = domain.SampleInterval(delta)
	base.Channel = dmgBuckets.Channel(float64(ints[dmgIntAngle]))

	var records []domain.ChannelRecord
	for _, sub := range dmgSubseries {
		n := ints[sub.index]
		if n <= 0 {
			continue
		}
		block := string(sub.units) + " data"
		head, err := c.next(block)
		if err != nil {
			return nil, false, err
		}
		cols, width := dmgLayout(head)
		samples, err := c.fixedSeries(n, cols, width, block)
		if err != nil {
			return nil, false, err
		}
		if !opts.wantUnits(sub.units) {
			continue
		}
		rec := base
		rec.Units = sub.units
		rec.Samples = samples
		records = append(records, rec)
	}
	if err := c.skip(1, "end of record"); err != nil {
		return nil, false, err
	}
	return records, fellBack, nil
}

// dmgLayout reads the column count and field width from the last token of a
// subseries header, defaulting to 8 fields of 10 characters.
func dmgLayout(head string) (cols, width int) {
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return dmgDefaultCols, dmgDefaultWidth
	}
	m := dmgLayoutRe.FindStringSubmatch(fields[len(fields)-1])
	if m == nil {
		return dmgDefaultCols, dmgDefaultWidth
	}
	cols, _ = strconv.Atoi(m[1])
	width, _ = strconv.Atoi(m[2])
	if cols == 0 || width == 0 {
		return dmgDefaultCols, dmgDefaultWidth
	}
	return cols, width
}

// dmgNetwork takes the first two letters of the last token of s when they form a
// known network code.
func dmgNetwork(s string, codes []string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return domain.UnknownNetwork
	}
	last := fields[len(fields)-1]
	if len(last) < 2 {
		return domain.UnknownNetwork
	}
	code := strings.ToUpper(last[:2])
	if slices.Contains(codes, code) {
		return code
	}
	return domain.UnknownNetwork
}

// dmgTriggerTime parses "TRIGGER TIME: 05/27/80, 14:51:00.9 GMT" from columns
// 36-80. A nonzero integer-header year overrides the two-digit year.
func dmgTriggerTime(l string, headerYear int) (time.Time, error) {
	s := strings.ToLower(strings.ReplaceAll(field(l, dmgTriggerLo, dmgTriggerHi), " ", ""))
	datePart, timePart, ok := strings.Cut(s, ",")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no date/time separator in %q", errTriggerTime, s)
	}
	datePart = datePart[strings.LastIndex(datePart, ":")+1:]
	mdy := strings.Split(datePart, "/")
	if len(mdy) != 3 {
		return time.Time{}, fmt.Errorf("%w: date %q", errTriggerTime, datePart)
	}
	timePart = strings.TrimRightFunc(timePart, unicode.IsLetter)
	hms := strings.Split(timePart, ":")
	if len(hms) != 3 {
		return time.Time{}, fmt.Errorf("%w: time %q", errTriggerTime, timePart)
	}

	var nums [5]int
	for i, p := range []string{mdy[0], mdy[1], mdy[2], hms[0], hms[1]} {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", errTriggerTime, err)
		}
		nums[i] = v
	}
	seconds, err := strconv.ParseFloat(hms[2], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errTriggerTime, err)
	}

	year := nums[2]
	switch {
	case headerYear != 0:
		year = headerYear
	case year < dmgYearPivot:
		year += 2000
	case year < 100:
		year += 1900
	}
	t, err := civilTime(year, nums[0], nums[1], nums[3], nums[4], seconds)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errTriggerTime, err)
	}
	return t, nil
}

// hemisphereValue parses "34.05N" or "118.25W"; S and W are negative.
func hemisphereValue(s string) (float64, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, errors.New("empty")
	}
	sign := 1.0
	switch s[len(s)-1] {
	case 'S', 's', 'W', 'w':
		sign = -1
		s = s[:len(s)-1]
	case 'N', 'n', 'E', 'e':
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return sign * v, nil
}
