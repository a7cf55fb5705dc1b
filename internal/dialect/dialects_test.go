package dialect_test

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/dialect"
	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/couchcryptid/strong-motion-etl/internal/fixture"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func decodeFile(t *testing.T, files map[string][]byte, name string, opts dialect.Options) domain.Decoded {
	t.Helper()
	out, err := dialect.Default().Decode(context.Background(), fixture.FS(files), name, opts)
	require.NoError(t, err)
	return out
}

func decodeErr(t *testing.T, files map[string][]byte, name string) error {
	t.Helper()
	_, err := dialect.Default().Decode(context.Background(), fixture.FS(files), name, dialect.Options{})
	require.Error(t, err)
	return err
}

func dropLines(data []byte, n int) []byte {
	ls := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return []byte(strings.Join(ls[:len(ls)-n], "\n") + "\n")
}

// rewriteLine replaces every line that starts with prefix.
func rewriteLine(data []byte, prefix, repl string) []byte {
	ls := strings.Split(string(data), "\n")
	for i, l := range ls {
		if strings.HasPrefix(l, prefix) {
			ls[i] = repl
		}
	}
	return []byte(strings.Join(ls, "\n"))
}

func scaled(samples []float64, div float64) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = v / div
	}
	return out
}

var recordCmp = cmp.AllowUnexported(domain.Sampling{})

// --- cosmos ---

func TestCOSMOS_TwoStackedBlocks(t *testing.T) {
	chans := []fixture.COSMOSChannel{
		{Network: "CE", Station: "23837", Name: "Hollister City Hall", Units: 1, StationType: 10, Angle: 360,
			Start: fixture.EventTime, Interval: 0.01, Lat: 36.851, Lon: -121.402,
			Comments: []string{"| Sensor: FBA-23"}, Samples: fixture.Wave(17000, 120, 0, 5)},
		{Network: "CE", Station: "23837", Name: "Hollister City Hall", Units: 1, StationType: 10, Angle: 90,
			Start: fixture.EventTime, Interval: 0.01, Lat: 36.851, Lon: -121.402,
			Samples: fixture.Wave(17000, 80, 1, 5)},
	}
	files := map[string][]byte{"hollister.v1": fixture.COSMOS(chans...)}

	out := decodeFile(t, files, "hollister.v1", dialect.Options{})
	assert.Equal(t, "cosmos", out.Format)
	require.Len(t, out.Group, 2)

	for i, rec := range out.Group {
		assert.Equal(t, 17000, rec.NumSamples())
		assert.InDelta(t, 100.0, rec.Sampling.Rate(), 1e-9)
		assert.InDelta(t, 0.01, rec.Sampling.Interval(), 1e-12)
		assert.Equal(t, chans[i].Samples, rec.Samples)
		assert.True(t, rec.StartTime.Equal(fixture.EventTime))
	}

	first := out.Group[0]
	assert.Equal(t, "CE", first.Network)
	assert.Equal(t, "23837", first.Station)
	assert.Equal(t, domain.UnknownLocation, first.Location)
	assert.Equal(t, "Hollister_City_Hall", first.Description)
	assert.Equal(t, domain.ProcessV1, first.ProcessLevel)
	assert.Equal(t, domain.UnitsAcceleration, first.Units)
	assert.Equal(t, []string{"| Sensor: FBA-23"}, first.Comments)
	assert.InDelta(t, 36.851, first.Latitude, 1e-9)
	assert.InDelta(t, -121.402, first.Longitude, 1e-9)
	assert.Equal(t, []string{domain.ChannelNorth, domain.ChannelEast}, out.Group.Channels())
}

func TestCOSMOS_Uncorrected(t *testing.T) {
	chans := fixture.SampleCOSMOS(40)
	for i := range chans {
		chans[i].Uncorrected = true
	}
	out := decodeFile(t, map[string][]byte{"raw.v0": fixture.COSMOS(chans...)}, "raw.v0", dialect.Options{})
	require.Len(t, out.Group, 3)
	for _, rec := range out.Group {
		assert.Equal(t, domain.ProcessRaw, rec.ProcessLevel)
	}
	assert.Equal(t, []string{domain.ChannelNorth, domain.ChannelEast, domain.ChannelVertical}, out.Group.Channels())
}

func TestCOSMOS_Filters(t *testing.T) {
	chans := fixture.SampleCOSMOS(40)
	chans[1].StationType = 20
	chans[2].Units = 2
	files := map[string][]byte{"mixed.v1": fixture.COSMOS(chans...)}

	tests := []struct {
		name string
		opts dialect.Options
		want []string
	}{
		{"no filter", dialect.Options{}, []string{domain.ChannelNorth, domain.ChannelEast, domain.ChannelVertical}},
		{"station type", dialect.Options{StationTypes: []int{10}}, []string{domain.ChannelNorth, domain.ChannelVertical}},
		{"velocity only", dialect.Options{Units: []domain.Units{domain.UnitsVelocity}}, []string{domain.ChannelVertical}},
		{"nothing left", dialect.Options{StationTypes: []int{99}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decodeFile(t, files, "mixed.v1", tt.opts)
			assert.Equal(t, tt.want, out.Group.Channels())
		})
	}
}

func TestCOSMOS_Truncated(t *testing.T) {
	files := map[string][]byte{"short.v1": dropLines(fixture.COSMOS(fixture.SampleCOSMOS(40)...), 3)}

	err := decodeErr(t, files, "short.v1")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)

	var de *domain.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "short.v1", de.Path)
	assert.Equal(t, "data", de.Block)
	assert.Positive(t, de.Line)
}

func TestCOSMOS_BadDataField(t *testing.T) {
	data := fixture.COSMOS(fixture.SampleCOSMOS(16)...)
	// The first data row follows the acceleration sub-header.
	idx := bytes.Index(data, []byte("Format=(8F10.5)\n"))
	require.Positive(t, idx)
	start := idx + len("Format=(8F10.5)\n")
	copy(data[start:start+10], "   abc.def")

	err := decodeErr(t, map[string][]byte{"bad.v1": data}, "bad.v1")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}

// --- geonet ---

func TestGeoNet_V2(t *testing.T) {
	f := fixture.SampleGeoNet(120)
	out := decodeFile(t, map[string][]byte{"wtmc.V2A": fixture.GeoNet(f)}, "wtmc.V2A", dialect.Options{})

	require.Len(t, out.Group, 3)
	assert.Equal(t, []string{domain.ChannelNorth, domain.ChannelEast, domain.ChannelVertical}, out.Group.Channels())
	for i, rec := range out.Group {
		assert.Equal(t, "NZ", rec.Network)
		assert.Equal(t, "WTMC", rec.Station)
		assert.Equal(t, "Waitaha_Coast", rec.Description)
		assert.Equal(t, domain.ProcessV2, rec.ProcessLevel)
		assert.True(t, rec.StartTime.Equal(fixture.EventTime), "start %v", rec.StartTime)
		assert.InDelta(t, 0.01, rec.Sampling.Interval(), 1e-12)
		assert.Equal(t, scaled(f.Channels[i].Samples, 10), rec.Samples)
		assert.InDelta(t, -(41 + 17.5/60), rec.Latitude, 1e-9)
		assert.InDelta(t, 174+(46+12.0/60)/60, rec.Longitude, 1e-9)
	}
}

func TestGeoNet_V1UsesRate(t *testing.T) {
	f := fixture.SampleGeoNet(60)
	f.Uncorrected = true
	f.Rate = 200
	out := decodeFile(t, map[string][]byte{"wtmc.V1A": fixture.GeoNet(f)}, "wtmc.V1A", dialect.Options{})

	require.Len(t, out.Group, 3)
	for _, rec := range out.Group {
		assert.Equal(t, domain.ProcessV1, rec.ProcessLevel)
		assert.Equal(t, 200.0, rec.Sampling.Rate())
		assert.Equal(t, 60, rec.NumSamples())
	}
}

func TestGeoNet_ChannelConflictResolved(t *testing.T) {
	f := fixture.SampleGeoNet(30)
	f.Channels[0].Component = "N10E"
	f.Channels[1].Component = "N20W"
	out := decodeFile(t, map[string][]byte{"wtmc.V2A": fixture.GeoNet(f)}, "wtmc.V2A", dialect.Options{})

	assert.Equal(t, []string{domain.ChannelNorth, domain.ChannelEast, domain.ChannelVertical}, out.Group.Channels())
	assert.Equal(t, scaled(f.Channels[1].Samples, 10), out.Group[1].Samples)
}

func TestGeoNet_UnknownComponent(t *testing.T) {
	f := fixture.SampleGeoNet(30)
	f.Channels[0].Component = "Sideways"

	err := decodeErr(t, map[string][]byte{"wtmc.V2A": fixture.GeoNet(f)}, "wtmc.V2A")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "Sideways")
}

// --- cwb ---

func TestCWB_Sample(t *testing.T) {
	f := fixture.SampleCWB(150)
	out := decodeFile(t, map[string][]byte{"tap003.txt": fixture.CWB(f)}, "tap003.txt", dialect.Options{})

	require.Len(t, out.Group, 3)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, []string{domain.ChannelVertical, domain.ChannelNorth, domain.ChannelEast}, out.Group.Channels())
	assert.Equal(t, f.Z, out.Group[0].Samples)
	assert.Equal(t, f.N, out.Group[1].Samples)
	assert.Equal(t, f.E, out.Group[2].Samples)

	rec := out.Group[0]
	assert.Equal(t, "TW", rec.Network)
	assert.Equal(t, "TAP003", rec.Station)
	assert.Equal(t, "Taipei_Dongmen", rec.Description)
	assert.Equal(t, []string{"InstrumentKind: A900A"}, rec.Comments)
	assert.True(t, rec.StartTime.Equal(fixture.EventTime), "local time must be shifted to UTC, got %v", rec.StartTime)
	assert.Equal(t, 100.0, rec.Sampling.Rate())
	assert.InDelta(t, 25.0372, rec.Latitude, 1e-9)
}

func TestCWB_RecordLengthMismatch(t *testing.T) {
	f := fixture.SampleCWB(150)
	f.RecordLength = 10
	out := decodeFile(t, map[string][]byte{"tap003.txt": fixture.CWB(f)}, "tap003.txt", dialect.Options{})

	require.Len(t, out.Warnings, 1)
	assert.Equal(t, domain.WarnRecordLength, out.Warnings[0].Code)
	assert.Len(t, out.Group, 3)
}

func TestCWB_MissingCoordinates(t *testing.T) {
	data := fixture.CWB(fixture.SampleCWB(20))
	data = rewriteLine(data, "#StationLatitude", "#StationLatitude:")
	data = rewriteLine(data, "#StationLongitude", "#Network: CWB")
	out := decodeFile(t, map[string][]byte{"tap003.txt": data}, "tap003.txt", dialect.Options{})

	require.Len(t, out.Group, 3)
	for _, rec := range out.Group {
		assert.True(t, math.IsNaN(rec.Latitude))
		assert.True(t, math.IsNaN(rec.Longitude))
	}
	require.Len(t, out.Warnings, 2)
	for _, w := range out.Warnings {
		assert.Equal(t, domain.WarnMissingCoordinate, w.Code)
		assert.Equal(t, "tap003.txt", w.Path)
	}
	assert.Contains(t, out.Warnings[0].Message, "StationLatitude")
	assert.Contains(t, out.Warnings[1].Message, "StationLongitude")

	_, err := domain.SerializeRecordingGroup(out.Group, out.Warnings)
	require.NoError(t, err)

	bad := rewriteLine(fixture.CWB(fixture.SampleCWB(20)), "#StationLatitude", "#StationLatitude: north")
	err = decodeErr(t, map[string][]byte{"tap003.txt": bad}, "tap003.txt")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "StationLatitude")
}

func TestCWB_ShortRow(t *testing.T) {
	data := append(fixture.CWB(fixture.SampleCWB(10)), []byte("     0.100     1.000\n")...)

	err := decodeErr(t, map[string][]byte{"tap003.txt": data}, "tap003.txt")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "want 4 columns")
}

// --- dmg ---

func TestDMG_Subseries(t *testing.T) {
	chans := fixture.SampleDMG(100)
	out := decodeFile(t, map[string][]byte{"hollister.v2": fixture.DMG(chans...)}, "hollister.v2", dialect.Options{})

	require.Len(t, out.Group, 9)
	assert.Empty(t, out.Warnings)
	for i, rec := range out.Group {
		ch := chans[i/3]
		assert.Equal(t, "CE", rec.Network)
		assert.Equal(t, "23837", rec.Station)
		assert.Equal(t, "HOLLISTER_CITY_HALL", rec.Description)
		assert.Equal(t, domain.ProcessV2, rec.ProcessLevel)
		assert.True(t, rec.StartTime.Equal(fixture.EventTime), "start %v", rec.StartTime)
		assert.InDelta(t, 36.85, rec.Latitude, 1e-9)
		assert.InDelta(t, -121.40, rec.Longitude, 1e-9)
		switch i % 3 {
		case 0:
			assert.Equal(t, domain.UnitsAcceleration, rec.Units)
			assert.Equal(t, ch.Acc, rec.Samples)
		case 1:
			assert.Equal(t, domain.UnitsVelocity, rec.Units)
			assert.Equal(t, ch.Vel, rec.Samples)
		case 2:
			assert.Equal(t, domain.UnitsDisplacement, rec.Units)
			assert.Equal(t, ch.Disp, rec.Samples)
		}
	}
	channels := out.Group.Channels()
	assert.Equal(t, []string{
		domain.ChannelNorth, domain.ChannelNorth, domain.ChannelNorth,
		domain.ChannelEast, domain.ChannelEast, domain.ChannelEast,
		domain.ChannelVertical, domain.ChannelVertical, domain.ChannelVertical,
	}, channels)
}

func TestDMG_UnitsFilter(t *testing.T) {
	files := map[string][]byte{"hollister.v2": fixture.DMG(fixture.SampleDMG(50)...)}
	out := decodeFile(t, files, "hollister.v2", dialect.Options{Units: []domain.Units{domain.UnitsAcceleration}})

	require.Len(t, out.Group, 3)
	for _, rec := range out.Group {
		assert.Equal(t, domain.UnitsAcceleration, rec.Units)
	}
}

func TestDMG_CorruptTriggerTimeFallsBack(t *testing.T) {
	chans := fixture.SampleDMG(50)
	for i := range chans {
		chans[i].Trigger = "TRIGGER TIME: GARBLED BY TRANSMISSION"
	}
	out := decodeFile(t, map[string][]byte{"garbled.v2": fixture.DMG(chans...)}, "garbled.v2", dialect.Options{})

	require.Len(t, out.Group, 9)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, domain.WarnTriggerTimeFallback, out.Warnings[0].Code)
	assert.Contains(t, out.Warnings[0].Message, "integer header")
	for _, rec := range out.Group {
		assert.True(t, rec.StartTime.Equal(fixture.EventTime.Truncate(time.Second)), "start %v", rec.StartTime)
	}
}

func TestDMG_NoStartTime(t *testing.T) {
	chans := fixture.SampleDMG(50)
	for i := range chans {
		chans[i].Trigger = "TRIGGER TIME: GARBLED BY TRANSMISSION"
		chans[i].Start = time.Time{}
	}
	err := decodeErr(t, map[string][]byte{"unlocked.v2": fixture.DMG(chans...)}, "unlocked.v2")
	assert.ErrorIs(t, err, domain.ErrMissingStartTime)
	assert.Equal(t, "missing_start_time", domain.ErrorKind(err))

	var de *domain.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "unlocked.v2", de.Path)
	assert.Equal(t, 5, de.Line)
}

func TestDMG_NetworkVocabulary(t *testing.T) {
	chans := fixture.SampleDMG(20)
	for i := range chans {
		chans[i].Network = "ZZ"
	}
	files := map[string][]byte{"zz.v2": fixture.DMG(chans...)}

	out := decodeFile(t, files, "zz.v2", dialect.Options{})
	assert.Equal(t, domain.UnknownNetwork, out.Group[0].Network)

	out = decodeFile(t, files, "zz.v2", dialect.Options{NetworkCodes: []string{"ZZ"}})
	assert.Equal(t, "ZZ", out.Group[0].Network)
}

func TestDMG_OrientationBuckets(t *testing.T) {
	tests := []struct {
		angle int
		want  string
	}{
		{0, domain.ChannelNorth},
		{90, domain.ChannelEast},
		{180, domain.ChannelNorth},
		{270, domain.ChannelEast},
		{400, domain.ChannelNorth},
		{500, domain.ChannelVertical},
		{600, domain.ChannelVertical},
	}
	for _, tt := range tests {
		chans := fixture.SampleDMG(8)[:1]
		chans[0].Angle = tt.angle
		out := decodeFile(t, map[string][]byte{"one.v2": fixture.DMG(chans...)}, "one.v2", dialect.Options{})
		assert.Equal(t, tt.want, out.Group[0].Channel, "angle %d", tt.angle)
	}
}

func TestDMG_OtherVolumesRejected(t *testing.T) {
	data := bytes.Replace(fixture.DMG(fixture.SampleDMG(20)...),
		[]byte("CORRECTED ACCELEROGRAM"), []byte("UNCORRECTED ACCELEROGRAM"), 1)
	files := map[string][]byte{"raw.v1": data}

	d, err := dialect.Default().Detect(fixture.FS(files), "raw.v1")
	require.NoError(t, err)
	assert.Equal(t, "dmg", d.Name())

	err = decodeErr(t, files, "raw.v1")
	assert.ErrorIs(t, err, domain.ErrRejectedRecord)
}

// --- knet ---

func TestKNET_ThreeCompanions(t *testing.T) {
	f := fixture.SampleKNET(120)
	files := fixture.KNET("MYG0041103111446", f)
	out := decodeFile(t, files, "MYG0041103111446.NS", dialect.Options{})

	require.Len(t, out.Group, 3)
	assert.Equal(t, []string{domain.ChannelEast, domain.ChannelNorth, domain.ChannelVertical}, out.Group.Channels())

	scale := 3920.0 / 6182761.0
	for i, comp := range []fixture.KNETComponent{f.EW, f.NS, f.UD} {
		want := make([]float64, len(comp.Counts))
		for j, c := range comp.Counts {
			want[j] = float64(c) * scale
		}
		rec := out.Group[i]
		assert.Equal(t, want, rec.Samples)
		assert.Equal(t, "BO", rec.Network)
		assert.Equal(t, "MYG004", rec.Station)
		assert.Equal(t, domain.ProcessV1, rec.ProcessLevel)
		assert.Equal(t, 100.0, rec.Sampling.Rate())
		assert.True(t, rec.StartTime.Equal(f.Start), "JST must be shifted to UTC, got %v", rec.StartTime)
	}
}

func TestKNET_SniffNeedsAllCompanions(t *testing.T) {
	files := fixture.KNET("site", fixture.SampleKNET(16))
	delete(files, "site.UD")

	assert.False(t, dialect.KNET{}.Sniff(fixture.FS(files), "site.EW"))
	_, err := dialect.Default().Detect(fixture.FS(files), "site.EW")
	assert.ErrorIs(t, err, domain.ErrNoMatchingFormat)
}

func TestKNET_ChannelConflict(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		f := fixture.SampleKNET(16)
		f.EW.Dir = "N-S"
		out := decodeFile(t, fixture.KNET("site", f), "site.EW", dialect.Options{})

		assert.Equal(t, []string{domain.ChannelNorth, domain.ChannelEast, domain.ChannelVertical}, out.Group.Channels())
		// The second north record (from the .NS file) takes the missing east code.
		scale := 3920.0 / 6182761.0
		assert.Equal(t, float64(f.NS.Counts[1])*scale, out.Group[1].Samples[1])
	})

	t.Run("unresolvable", func(t *testing.T) {
		f := fixture.SampleKNET(16)
		f.EW.Dir = "N-S"
		f.UD.Dir = "N-S"
		err := decodeErr(t, fixture.KNET("site", f), "site.EW")

		assert.ErrorIs(t, err, domain.ErrUnresolvableChannelConflict)
		var de *domain.DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "site.EW", de.Path)
	})
}

// --- smc ---

func TestSMC_Sample(t *testing.T) {
	f := fixture.SampleSMC(90)
	out := decodeFile(t, map[string][]byte{"pkd.smc": fixture.SMC(f)}, "pkd.smc", dialect.Options{})

	require.Len(t, out.Group, 1)
	rec := out.Group[0]
	assert.Equal(t, domain.ChannelEast, rec.Channel)
	assert.Equal(t, "PKD1", rec.Station)
	assert.Equal(t, domain.UnknownNetwork, rec.Network)
	assert.Equal(t, domain.ProcessV2, rec.ProcessLevel)
	assert.True(t, rec.StartTime.Equal(fixture.EventTime), "start %v", rec.StartTime)
	assert.Equal(t, f.Samples, rec.Samples)
	assert.Equal(t, f.Comments, rec.Comments)
	assert.InDelta(t, 35.9, rec.Latitude, 1e-9)
}

func TestSMC_Variants(t *testing.T) {
	t.Run("vertical", func(t *testing.T) {
		f := fixture.SampleSMC(16)
		f.Vertical = 180
		out := decodeFile(t, map[string][]byte{"v.smc": fixture.SMC(f)}, "v.smc", dialect.Options{})
		assert.Equal(t, domain.ChannelVertical, out.Group[0].Channel)
	})

	t.Run("numeric station", func(t *testing.T) {
		f := fixture.SampleSMC(16)
		f.Station = ""
		f.NumericStation = 1234
		out := decodeFile(t, map[string][]byte{"n.smc": fixture.SMC(f)}, "n.smc", dialect.Options{})
		assert.Equal(t, "1234", out.Group[0].Station)
	})

	t.Run("problem flag", func(t *testing.T) {
		f := fixture.SampleSMC(16)
		f.Problem = 1
		err := decodeErr(t, map[string][]byte{"p.smc": fixture.SMC(f)}, "p.smc")
		assert.ErrorIs(t, err, domain.ErrRejectedRecord)
		assert.Equal(t, "rejected_record", domain.ErrorKind(err))
	})

	t.Run("structure sensor", func(t *testing.T) {
		f := fixture.SampleSMC(16)
		f.Structure = 2
		err := decodeErr(t, map[string][]byte{"s.smc": fixture.SMC(f)}, "s.smc")
		assert.ErrorIs(t, err, domain.ErrRejectedRecord)
		assert.Contains(t, err.Error(), "free-field")
	})
}

func TestSMC_DayOfYearPastYearEnd(t *testing.T) {
	f := fixture.SampleSMC(16)
	f.Start = time.Date(2016, 12, 31, 8, 0, 0, 0, time.UTC) // day 366
	out := decodeFile(t, map[string][]byte{"leap.smc": fixture.SMC(f)}, "leap.smc", dialect.Options{})
	require.Len(t, out.Group, 1)
	assert.True(t, out.Group[0].StartTime.Equal(f.Start), "start %v", out.Group[0].StartTime)

	f.Start = time.Date(2015, 12, 31, 8, 0, 0, 0, time.UTC)
	data := fixture.SMC(f)
	// Day 365 of 2015 becomes 366, one past the end of the year.
	old := fmt.Sprintf("%10d%10d", 2015, 365)
	require.Contains(t, string(data), old)
	data = bytes.Replace(data, []byte(old), []byte(fmt.Sprintf("%10d%10d", 2015, 366)), 1)

	err := decodeErr(t, map[string][]byte{"late.smc": data}, "late.smc")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
	assert.NotErrorIs(t, err, domain.ErrMissingStartTime)
	assert.Contains(t, err.Error(), "day of year 366")

	var de *domain.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "late.smc", de.Path)
	assert.Equal(t, "integer header", de.Block)
}

// --- slist ---

func TestSLIST_Fallback(t *testing.T) {
	out := decodeFile(t, fixture.Catalog(), "slist.ascii", dialect.Options{})

	assert.Equal(t, "slist", out.Format)
	require.Len(t, out.Group, 3)
	assert.Equal(t, []string{domain.ChannelNorth, domain.ChannelEast, domain.ChannelVertical}, out.Group.Channels())
	rec := out.Group[0]
	assert.Equal(t, "XX", rec.Network)
	assert.Equal(t, "TEST", rec.Station)
	assert.Equal(t, "00", rec.Location)
	assert.True(t, rec.StartTime.Equal(fixture.EventTime))
	assert.Equal(t, fixture.Wave(200, 12, 0, 6), rec.Samples)
}

func TestSLIST_Units(t *testing.T) {
	series := fixture.SLISTSeries{ID: "XX_TEST__HNZ_D", Start: fixture.EventTime, Rate: 50, Samples: []float64{1, 2, 3}}

	series.Unit = "cm/s"
	out := decodeFile(t, map[string][]byte{"v.ascii": fixture.SLIST(series)}, "v.ascii", dialect.Options{})
	require.Len(t, out.Group, 1)
	assert.Equal(t, domain.UnitsVelocity, out.Group[0].Units)
	assert.Equal(t, domain.UnknownLocation, out.Group[0].Location)

	series.Unit = "counts"
	err := decodeErr(t, map[string][]byte{"c.ascii": fixture.SLIST(series)}, "c.ascii")
	assert.ErrorIs(t, err, domain.ErrRejectedRecord)
}

// --- cross-dialect properties ---

func TestDecode_DeterministicAndConsistent(t *testing.T) {
	files := fixture.Catalog()
	fsys := fixture.FS(files)
	reg := dialect.Default()

	for _, name := range []string{"cosmos.v1", "geonet.V2A", "cwb.txt", "dmg.v2", "knet.EW", "smc.smc", "slist.ascii"} {
		t.Run(name, func(t *testing.T) {
			first, err := reg.Decode(context.Background(), fsys, name, dialect.Options{})
			require.NoError(t, err)
			second, err := reg.Decode(context.Background(), fsys, name, dialect.Options{})
			require.NoError(t, err)

			if diff := cmp.Diff(first, second, recordCmp); diff != "" {
				t.Errorf("decode not deterministic (-first +second):\n%s", diff)
			}
			require.NotEmpty(t, first.Group)
			for _, rec := range first.Group {
				assert.Equal(t, len(rec.Samples), rec.NumSamples())
				assert.InDelta(t, 1.0, rec.Sampling.Rate()*rec.Sampling.Interval(), 1e-12)
				assert.True(t, domain.IsCanonicalChannel(rec.Channel), rec.Channel)
				assert.Equal(t, name, first.Path)
				assert.False(t, rec.StartTime.IsZero())
				assert.Equal(t, first.Format, rec.Format)
			}
		})
	}
}

func TestDecode_MissingStartTime(t *testing.T) {
	cosmos := fixture.SampleCOSMOS(16)
	for i := range cosmos {
		cosmos[i].Start = time.Time{}
	}
	geonet := fixture.SampleGeoNet(16)
	geonet.Start = time.Time{}
	smc := fixture.SampleSMC(16)
	smc.Start = time.Time{}
	knet := fixture.KNET("myg004", fixture.SampleKNET(16))
	for name, data := range knet {
		knet[name] = rewriteLine(data, "Record Time", "Record Time")
	}

	tests := []struct {
		name  string
		files map[string][]byte
		path  string
	}{
		{"cosmos", map[string][]byte{"zero.v1": fixture.COSMOS(cosmos...)}, "zero.v1"},
		{"geonet", map[string][]byte{"zero.V2A": fixture.GeoNet(geonet)}, "zero.V2A"},
		{"cwb", map[string][]byte{"zero.txt": rewriteLine(fixture.CWB(fixture.SampleCWB(16)), "#StartTime", "#StartTime:")}, "zero.txt"},
		{"knet", knet, "myg004.EW"},
		{"smc", map[string][]byte{"zero.smc": fixture.SMC(smc)}, "zero.smc"},
		{"slist", map[string][]byte{"zero.ascii": []byte("TIMESERIES XX_TEST__HNZ_D, 3 samples, 50 sps, , SLIST, FLOAT, gal\n 1 2 3\n")}, "zero.ascii"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := decodeErr(t, tc.files, tc.path)
			assert.ErrorIs(t, err, domain.ErrMissingStartTime)

			var de *domain.DecodeError
			require.ErrorAs(t, err, &de)
			assert.NotEmpty(t, de.Path)
		})
	}
}

func TestDecode_CanceledMidFile(t *testing.T) {
	files := map[string][]byte{"big.v1": fixture.COSMOS(fixture.SampleCOSMOS(5000)...)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dialect.COSMOS{}.Decode(ctx, fixture.FS(files), "big.v1", dialect.Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "canceled", domain.ErrorKind(err))
}
