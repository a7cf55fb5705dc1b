package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(1999, 9, 20, 17, 47, 15, 250000000, time.UTC)

func testRecord(channel string, samples ...float64) ChannelRecord {
	return ChannelRecord{
		Network:   "TW",
		Station:   "TCU068",
		Location:  UnknownLocation,
		Channel:   channel,
		StartTime: testStart,
		Sampling:  SampleRate(200),
		Samples:   samples,
		Units:     UnitsAcceleration,
		Format:    "cwb",
	}
}

func TestSampling(t *testing.T) {
	t.Run("rate authoritative", func(t *testing.T) {
		s := SampleRate(100)
		assert.Equal(t, 100.0, s.Rate())
		assert.InDelta(t, 0.01, s.Interval(), 1e-15)
		assert.True(t, s.Valid())
	})

	t.Run("interval authoritative", func(t *testing.T) {
		s := SampleInterval(0.005)
		assert.Equal(t, 0.005, s.Interval())
		assert.InDelta(t, 200.0, s.Rate(), 1e-9)
	})

	t.Run("zero is invalid", func(t *testing.T) {
		assert.False(t, SampleRate(0).Valid())
		assert.False(t, Sampling{}.Valid())
	})
}

func TestChannelRecord_EndTime(t *testing.T) {
	r := testRecord(ChannelNorth, 1, 2, 3, 4, 5)
	assert.Equal(t, testStart.Add(20*time.Millisecond), r.EndTime())

	empty := testRecord(ChannelNorth)
	assert.Equal(t, testStart, empty.EndTime())
}

func TestChannelRecord_ID(t *testing.T) {
	r := testRecord(ChannelVertical)
	assert.Equal(t, "TW.TCU068.--.HHZ", r.ID())
}

func TestChannelRecord_Duplicates(t *testing.T) {
	a := testRecord(ChannelNorth, 1, 2, 3)
	b := testRecord(ChannelNorth, 1, 2, 3)
	assert.True(t, a.Duplicates(&b))

	c := testRecord(ChannelNorth, 1, 2, 4)
	assert.False(t, a.Duplicates(&c))

	d := testRecord(ChannelEast, 1, 2, 3)
	assert.False(t, a.Duplicates(&d))

	e := testRecord(ChannelNorth, 1, 2, 3)
	e.Station = "TCU069"
	assert.False(t, a.Duplicates(&e))
}

func TestChannelRecord_SameEvent(t *testing.T) {
	a := testRecord(ChannelNorth, 1, 2, 3)
	b := testRecord(ChannelEast, 1, 2, 3, 4)

	assert.True(t, a.SameEvent(&b, false))
	assert.False(t, a.SameEvent(&b, true))
}

func TestChannelRecord_WithChannel(t *testing.T) {
	a := testRecord(ChannelNorth, 1, 2)
	b := a.WithChannel(ChannelEast)

	assert.Equal(t, ChannelNorth, a.Channel)
	assert.Equal(t, ChannelEast, b.Channel)
}

func TestParseUnits(t *testing.T) {
	u, ok := ParseUnits(" VEL ")
	assert.True(t, ok)
	assert.Equal(t, UnitsVelocity, u)

	_, ok = ParseUnits("gal")
	assert.False(t, ok)
}

func TestHorizontalChannel(t *testing.T) {
	tests := []struct {
		angle float64
		want  string
	}{
		{0, ChannelNorth},
		{44.9, ChannelNorth},
		{45, ChannelEast},
		{90, ChannelEast},
		{135, ChannelEast},
		{180, ChannelNorth},
		{225, ChannelEast},
		{270, ChannelEast},
		{315, ChannelEast},
		{315.1, ChannelNorth},
		{360, ChannelNorth},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HorizontalChannel(tt.angle), "angle %v", tt.angle)
	}
}

func TestOrientationBuckets(t *testing.T) {
	cosmos := OrientationBuckets{VerticalAtOrAbove: 400}
	dmg := OrientationBuckets{VerticalAngles: []float64{500, 600}}

	assert.Equal(t, ChannelVertical, cosmos.Channel(400))
	assert.Equal(t, ChannelVertical, cosmos.Channel(500))
	assert.Equal(t, ChannelEast, cosmos.Channel(270))

	assert.Equal(t, ChannelNorth, dmg.Channel(400))
	assert.Equal(t, ChannelVertical, dmg.Channel(500))
	assert.Equal(t, ChannelVertical, dmg.Channel(600))
	assert.Equal(t, ChannelNorth, dmg.Channel(180))
}

func TestResolveChannelConflicts(t *testing.T) {
	t.Run("no conflict", func(t *testing.T) {
		in := []ChannelRecord{testRecord(ChannelEast), testRecord(ChannelNorth), testRecord(ChannelVertical)}
		out, err := ResolveChannelConflicts(in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("second duplicate takes missing code", func(t *testing.T) {
		in := []ChannelRecord{testRecord(ChannelNorth), testRecord(ChannelNorth), testRecord(ChannelVertical)}
		out, err := ResolveChannelConflicts(in)
		require.NoError(t, err)
		assert.Equal(t, []string{ChannelNorth, ChannelEast, ChannelVertical}, RecordingGroup(out).Channels())
		assert.Equal(t, ChannelNorth, in[1].Channel, "input must not be modified")
	})

	t.Run("no single missing code", func(t *testing.T) {
		in := []ChannelRecord{testRecord(ChannelNorth), testRecord(ChannelNorth), testRecord(ChannelNorth)}
		_, err := ResolveChannelConflicts(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnresolvableChannelConflict))
	})

	t.Run("two records sharing a code", func(t *testing.T) {
		in := []ChannelRecord{testRecord(ChannelEast), testRecord(ChannelEast)}
		_, err := ResolveChannelConflicts(in)
		assert.ErrorIs(t, err, ErrUnresolvableChannelConflict)
	})
}

func TestDecodeError(t *testing.T) {
	err := Malformed("a.V2", 12, "integer header", "field %d: %q", 3, "x1")
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.Equal(t, `malformed record: a.V2 line 12 (integer header): field 3: "x1"`, err.Error())

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "a.V2", de.Path)
	assert.Equal(t, "malformed_record", ErrorKind(err))
	assert.Equal(t, "rejected_record", ErrorKind(Rejected("b", 0, "", "flag")))
	assert.Equal(t, "io", ErrorKind(errors.New("boom")))
}

func TestSerializeRecordingGroup(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	g := RecordingGroup{testRecord(ChannelNorth, 0.5, -0.25)}
	out, err := SerializeRecordingGroup(g, []Warning{{Code: WarnUngroupedChannel, Message: "single"}})
	require.NoError(t, err)

	assert.Equal(t, "TW.TCU068."+testStart.Format(time.RFC3339Nano), string(out.Key))
	assert.Equal(t, "cwb", out.Headers["format"])
	assert.Equal(t, "2026-01-02T03:04:05Z", out.Headers["processed_at"])

	var body GroupJSON
	require.NoError(t, json.Unmarshal(out.Value, &body))
	require.Len(t, body.Channels, 1)
	assert.Equal(t, "TW.TCU068.--.HHN", body.Channels[0].ID)
	assert.Equal(t, 2, body.Channels[0].NumSamples)
	assert.Equal(t, 200.0, body.Channels[0].SampleRate)
	assert.Len(t, body.Warnings, 1)

	_, err = SerializeRecordingGroup(nil, nil)
	assert.ErrorIs(t, err, ErrMalformedGroup)
}

func TestSerializeRecordingGroup_NonFinite(t *testing.T) {
	rec := testRecord(ChannelEast, 0.5, math.NaN(), math.Inf(-1), 1e-7)
	rec.Latitude = math.NaN()
	rec.Longitude = 121.5

	out, err := SerializeRecordingGroup(RecordingGroup{rec}, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out.Value), `"samples":[0.5,null,null,1e-07]`)
	assert.Contains(t, string(out.Value), `"latitude":null,"longitude":121.5`)

	var body GroupJSON
	require.NoError(t, json.Unmarshal(out.Value, &body))
	ch := body.Channels[0]
	require.Len(t, ch.Samples, 4)
	assert.Equal(t, 0.5, ch.Samples[0])
	assert.True(t, math.IsNaN(ch.Samples[1]))
	assert.True(t, math.IsNaN(ch.Samples[2]))
	assert.Equal(t, 1e-7, ch.Samples[3])
	assert.True(t, math.IsNaN(float64(ch.Latitude)))
	assert.Equal(t, Float(121.5), ch.Longitude)
}

func TestSeries_JSONNull(t *testing.T) {
	data, err := json.Marshal(struct {
		S Series `json:"s"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":null}`, string(data))

	var s Series
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.Nil(t, s)
	assert.Error(t, json.Unmarshal([]byte(`["x"]`), &s))
}
