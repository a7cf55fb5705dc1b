package dialect

import (
	"context"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// SLIST reads the generic ASCII sample-list layout:
//
//	TIMESERIES NET_STA_LOC_CHA_Q, 12 samples, 100 sps, 2003-05-29T02:13:22.043400, SLIST, FLOAT, cm/s^2
//
// followed by the samples, any number per line. Several series may follow each
// other. It is registered as the fallback dialect.
type SLIST struct{}

const (
	slistPrefix     = "TIMESERIES "
	slistTag        = "SLIST"
	slistTimeLayout = "2006-01-02T15:04:05.999999"
)

func (SLIST) Name() string { return "slist" }

func (SLIST) Sniff(fsys fs.FS, name string) bool {
	head := headLines(fsys, name, 1)
	if len(head) == 0 || !strings.HasPrefix(head[0], slistPrefix) {
		return false
	}
	parts := strings.Split(head[0], ",")
	return len(parts) >= 5 && strings.TrimSpace(parts[4]) == slistTag
}

func (SLIST) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	lines, err := readLines(fsys, name)
	if err != nil {
		return domain.Decoded{}, err
	}
	c := newCursor(ctx, name, lines)
	if !c.more() {
		return domain.Decoded{}, c.malformed("header", "empty file")
	}

	var out domain.Decoded
	for c.more() {
		if err := c.checkpoint(); err != nil {
			return domain.Decoded{}, err
		}
		headLine := c.line()
		head, _ := c.next("header")
		if strings.TrimSpace(head) == "" {
			continue
		}
		rec, npts, err := parseSLISTHeader(head)
		if err != nil {
			return domain.Decoded{}, inPath(withLine(err, headLine), name)
		}
		if rec.Samples, err = c.fieldSeries(npts, "data"); err != nil {
			return domain.Decoded{}, err
		}
		if opts.wantUnits(rec.Units) {
			out.Group = append(out.Group, rec)
		}
	}
	return out, nil
}

func parseSLISTHeader(l string) (domain.ChannelRecord, int, error) {
	bad := func(format string, args ...any) error {
		return domain.Malformed("", 0, "header", format, args...)
	}
	parts := strings.Split(strings.TrimPrefix(l, slistPrefix), ",")
	if len(parts) < 7 {
		return domain.ChannelRecord{}, 0, bad("want 7 comma-separated fields, found %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	rec := baseRecord("slist")
	id := strings.Split(parts[0], "_")
	if len(id) < 4 || id[0] == "" || id[1] == "" || id[3] == "" {
		return domain.ChannelRecord{}, 0, bad("stream id %q", parts[0])
	}
	rec.Network, rec.Station = id[0], id[1]
	if id[2] != "" {
		rec.Location = id[2]
	}
	switch id[3][len(id[3])-1] {
	case 'N', '1':
		rec.Channel = domain.ChannelNorth
	case 'E', '2':
		rec.Channel = domain.ChannelEast
	case 'Z':
		rec.Channel = domain.ChannelVertical
	default:
		return domain.ChannelRecord{}, 0, bad("channel %q has no orientation", id[3])
	}
	rec.Source = rec.Network

	npts, err := strconv.Atoi(strings.TrimSuffix(parts[1], " samples"))
	if err != nil || npts < 0 {
		return domain.ChannelRecord{}, 0, bad("sample count %q", parts[1])
	}
	rate, err := strconv.ParseFloat(strings.TrimSuffix(parts[2], " sps"), 64)
	if err != nil || rate <= 0 {
		return domain.ChannelRecord{}, 0, bad("sample rate %q", parts[2])
	}
	rec.Sampling = domain.SampleRate(rate)

	if parts[3] == "" {
		return domain.ChannelRecord{}, 0, &domain.DecodeError{Kind: domain.ErrMissingStartTime, Block: "header"}
	}
	if rec.StartTime, err = time.Parse(slistTimeLayout, parts[3]); err != nil {
		return domain.ChannelRecord{}, 0, bad("start time: %v", err)
	}

	switch unit := strings.ToLower(strings.ReplaceAll(parts[6], " ", "")); unit {
	case "gal", "cm/s^2", "cm/s**2", "cm/s2", "cm/sec2", "cm/sec^2":
		rec.Units = domain.UnitsAcceleration
	case "cm/s", "cm/sec":
		rec.Units = domain.UnitsVelocity
	case "cm":
		rec.Units = domain.UnitsDisplacement
	default:
		return domain.ChannelRecord{}, 0, &domain.DecodeError{Kind: domain.ErrRejectedRecord, Block: "header", Detail: "unsupported unit " + parts[6]}
	}
	return rec, npts, nil
}
