package dialect

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// KNET reads NIED K-NET/KiK-net ASCII files. Each component lives in its own
// file; name may point at any of the three companions (.EW, .NS, .UD) and all
// three are read. Record times are JST (UTC+9).
type KNET struct{}

const (
	knetTextRows   = 17
	knetTimeLayout = "2006/01/02 15:04:05"
	knetUTCOffset  = 9 * time.Hour
	knetNetwork    = "BO"
	knetSource     = "National Research Institute for Earth Science and Disaster Resilience"
)

// knetExtensions is the decode order of the companion files.
var knetExtensions = []string{".EW", ".NS", ".UD"}

var knetDigitsRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

func (KNET) Name() string { return "knet" }

// Companions returns the three component file names for any one of them.
func (KNET) Companions(name string) []string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	out := make([]string, len(knetExtensions))
	for i, ext := range knetExtensions {
		out[i] = stem + ext
	}
	return out
}

func (k KNET) Sniff(fsys fs.FS, name string) bool {
	for _, f := range k.Companions(name) {
		head := headLines(fsys, f, knetTextRows)
		if len(head) < 6 {
			return false
		}
		if !strings.HasPrefix(head[0], "Origin Time") || !strings.HasPrefix(head[5], "Station Code") {
			return false
		}
	}
	return true
}

func (k KNET) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	files := k.Companions(name)
	records := make([]domain.ChannelRecord, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return domain.Decoded{}, err
		}
		rec, err := decodeKNETFile(ctx, fsys, f)
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

func decodeKNETFile(ctx context.Context, fsys fs.FS, name string) (domain.ChannelRecord, error) {
	lines, err := readLines(fsys, name)
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	c := newCursor(ctx, name, lines)
	hdr, err := c.take(knetTextRows, "header")
	if err != nil {
		return domain.ChannelRecord{}, err
	}

	// value returns the whitespace field i of header line n.
	value := func(n, i int) (string, error) {
		f := strings.Fields(hdr[n])
		if i >= len(f) {
			return "", domain.Malformed(name, n+1, "header", "missing field %d", i)
		}
		return f[i], nil
	}
	number := func(n, i int) (float64, error) {
		s, err := value(n, i)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, domain.Malformed(name, n+1, "header", "%v", err)
		}
		return v, nil
	}

	rec := baseRecord("knet")
	rec.Network = knetNetwork
	rec.Source = knetSource
	rec.ProcessLevel = domain.ProcessV1
	if rec.Station, err = value(5, 2); err != nil {
		return domain.ChannelRecord{}, err
	}
	if rec.Latitude, err = number(6, 2); err != nil {
		return domain.ChannelRecord{}, err
	}
	if rec.Longitude, err = number(7, 2); err != nil {
		return domain.ChannelRecord{}, err
	}

	f := strings.Fields(hdr[9])
	if len(f) < 4 {
		return domain.ChannelRecord{}, &domain.DecodeError{Kind: domain.ErrMissingStartTime, Path: name, Line: 10, Block: "header"}
	}
	local, err := time.Parse(knetTimeLayout, f[2]+" "+f[3])
	if err != nil {
		return domain.ChannelRecord{}, domain.Malformed(name, 10, "header", "record time: %v", err)
	}
	rec.StartTime = local.Add(-knetUTCOffset)

	rateField, err := value(10, 2)
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	rate, err := strconv.ParseFloat(knetDigitsRe.FindString(rateField), 64)
	if err != nil || rate <= 0 {
		return domain.ChannelRecord{}, domain.Malformed(name, 11, "header", "sampling frequency %q", rateField)
	}
	rec.Sampling = domain.SampleRate(rate)

	duration, err := number(11, 2)
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	npts := int(math.Round(duration * rate))

	dir, err := value(12, 1)
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	if rec.Channel, err = knetChannel(dir); err != nil {
		return domain.ChannelRecord{}, domain.Malformed(name, 13, "header", "%v", err)
	}

	scaleField, err := value(13, 2)
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	scale, err := knetScale(scaleField)
	if err != nil {
		return domain.ChannelRecord{}, domain.Malformed(name, 14, "header", "%v", err)
	}

	counts, err := c.fieldSeries(npts, "data")
	if err != nil {
		return domain.ChannelRecord{}, err
	}
	rec.Samples = make([]float64, len(counts))
	for i, v := range counts {
		rec.Samples[i] = v * scale
	}
	return rec, nil
}

func knetChannel(dir string) (string, error) {
	switch dir {
	case "N-S", "1", "4":
		return domain.ChannelNorth, nil
	case "E-W", "2", "5":
		return domain.ChannelEast, nil
	case "U-D", "3", "6":
		return domain.ChannelVertical, nil
	default:
		return "", fmt.Errorf("unknown direction %q", dir)
	}
}

// knetScale parses "7845(gal)/8223790" into gal per count.
func knetScale(s string) (float64, error) {
	numStr, denStr, ok := strings.Cut(s, "/")
	if !ok {
		return 0, fmt.Errorf("scale factor %q", s)
	}
	num, err := strconv.ParseFloat(strings.TrimSuffix(numStr, "(gal)"), 64)
	if err != nil {
		return 0, fmt.Errorf("scale factor %q: %w", s, err)
	}
	den, err := strconv.ParseFloat(denStr, 64)
	if err != nil || den == 0 {
		return 0, fmt.Errorf("scale factor %q", s)
	}
	return num / den, nil
}
