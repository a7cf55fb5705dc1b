package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ChannelJSON is the wire form of a ChannelRecord.
type ChannelJSON struct {
	ID           string    `json:"id"`
	Network      string    `json:"network"`
	Station      string    `json:"station"`
	Location     string    `json:"location"`
	Channel      string    `json:"channel"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	SampleRate   float64   `json:"sample_rate"`
	Delta        float64   `json:"delta"`
	NumSamples   int       `json:"npts"`
	Units        Units     `json:"units"`
	ProcessLevel string    `json:"process_level,omitempty"`
	Latitude     Float     `json:"latitude"`
	Longitude    Float     `json:"longitude"`
	Description  string    `json:"description,omitempty"`
	Source       string    `json:"source,omitempty"`
	Format       string    `json:"format"`
	Samples      Series    `json:"samples"`
}

// Float is a float64 whose JSON form is null when it is NaN or infinite.
// Null decodes back to NaN.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	return appendFloat(nil, float64(f)), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(nullToNaN(v))
	return nil
}

// Series is a sample slice encoded element by element like Float, so a
// gap-filled or clipped record still serializes.
type Series []float64

func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	b := make([]byte, 0, 2+len(s)*10)
	b = append(b, '[')
	for i, v := range s {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendFloat(b, v)
	}
	return append(b, ']'), nil
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var vs []*float64
	if err := json.Unmarshal(data, &vs); err != nil {
		return err
	}
	if vs == nil {
		*s = nil
		return nil
	}
	out := make(Series, len(vs))
	for i, v := range vs {
		out[i] = nullToNaN(v)
	}
	*s = out
	return nil
}

func appendFloat(b []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(b, "null"...)
	}
	return strconv.AppendFloat(b, v, 'g', -1, 64)
}

func nullToNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// GroupJSON is the wire form of a RecordingGroup.
type GroupJSON struct {
	Key         string        `json:"key"`
	Channels    []ChannelJSON `json:"channels"`
	Warnings    []Warning     `json:"warnings,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// OutputEvent is the serialized form destined for a sink.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// NewChannelJSON converts a record to its wire form.
func NewChannelJSON(r *ChannelRecord) ChannelJSON {
	return ChannelJSON{
		ID:           r.ID(),
		Network:      r.Network,
		Station:      r.Station,
		Location:     r.Location,
		Channel:      r.Channel,
		StartTime:    r.StartTime.UTC(),
		EndTime:      r.EndTime().UTC(),
		SampleRate:   r.Sampling.Rate(),
		Delta:        r.Sampling.Interval(),
		NumSamples:   r.NumSamples(),
		Units:        r.Units,
		ProcessLevel: string(r.ProcessLevel),
		Latitude:     Float(r.Latitude),
		Longitude:    Float(r.Longitude),
		Description:  r.Description,
		Source:       r.Source,
		Format:       r.Format,
		Samples:      r.Samples,
	}
}

// NewGroupJSON converts a group and its warnings to wire form, stamped with the package clock.
func NewGroupJSON(g RecordingGroup, warnings []Warning) GroupJSON {
	out := GroupJSON{
		Key:         g.Key(),
		Channels:    make([]ChannelJSON, len(g)),
		Warnings:    warnings,
		ProcessedAt: clock.Now().UTC(),
	}
	for i := range g {
		out.Channels[i] = NewChannelJSON(&g[i])
	}
	return out
}

// SerializeRecordingGroup marshals a group into an OutputEvent keyed by the group key.
func SerializeRecordingGroup(g RecordingGroup, warnings []Warning) (OutputEvent, error) {
	if len(g) == 0 {
		return OutputEvent{}, fmt.Errorf("serialize recording group: %w", ErrMalformedGroup)
	}
	body := NewGroupJSON(g, warnings)
	data, err := json.Marshal(body)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize recording group: %w", err)
	}
	return OutputEvent{
		Key:   []byte(body.Key),
		Value: data,
		Headers: map[string]string{
			"format":       g[0].Format,
			"channels":     fmt.Sprint(len(g)),
			"processed_at": body.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
