package domain

import (
	"fmt"
	"slices"
)

// OrientationBuckets maps a recorded sensor azimuth to a canonical channel code.
// Each dialect owns one immutable table.
type OrientationBuckets struct {
	// VerticalAtOrAbove marks angles >= this value as vertical. Zero disables the rule.
	VerticalAtOrAbove float64
	// VerticalAngles lists exact sentinel angles meaning vertical.
	VerticalAngles []float64
}

// Channel returns the channel code for angle.
func (b OrientationBuckets) Channel(angle float64) string {
	if b.VerticalAtOrAbove > 0 && angle >= b.VerticalAtOrAbove {
		return ChannelVertical
	}
	if slices.Contains(b.VerticalAngles, angle) {
		return ChannelVertical
	}
	return HorizontalChannel(angle)
}

// HorizontalChannel applies the ±45° window around 0° and 180°: inside it the
// sensor is north-south, outside it east-west. Window edges (45, 135, 225, 315)
// fall on the east-west side.
func HorizontalChannel(angle float64) string {
	if angle > 315 || angle < 45 || (angle > 135 && angle < 225) {
		return ChannelNorth
	}
	return ChannelEast
}

// ResolveChannelConflicts reassigns the second occurrence of a repeated channel
// code to the single canonical code missing from the set. The input slice is not
// modified; a resolved copy is returned. Sets without repeats come back unchanged.
func ResolveChannelConflicts(records []ChannelRecord) ([]ChannelRecord, error) {
	seen := make(map[string]bool, len(records))
	var repeats []int
	for i := range records {
		if seen[records[i].Channel] {
			repeats = append(repeats, i)
			continue
		}
		seen[records[i].Channel] = true
	}
	if len(repeats) == 0 {
		return records, nil
	}

	var missing []string
	for _, code := range CanonicalChannels {
		if !seen[code] {
			missing = append(missing, code)
		}
	}
	if len(repeats) != 1 || len(missing) != 1 {
		return nil, &DecodeError{
			Kind:   ErrUnresolvableChannelConflict,
			Detail: fmt.Sprintf("channels %v: %d repeated, missing %v", channelsOf(records), len(repeats), missing),
		}
	}

	out := slices.Clone(records)
	out[repeats[0]] = out[repeats[0]].WithChannel(missing[0])
	return out, nil
}

func channelsOf(records []ChannelRecord) []string {
	return RecordingGroup(records).Channels()
}
