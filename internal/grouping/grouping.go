// Package grouping reconciles channel records decoded from one or more files
// into per-station, per-event recording groups.
package grouping

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// MatchMode selects which fields two records must share to belong to one group.
type MatchMode int

const (
	// MatchStart compares network, station and start time.
	MatchStart MatchMode = iota
	// MatchStartEnd additionally requires equal end times.
	MatchStartEnd
)

func (m MatchMode) String() string {
	switch m {
	case MatchStart:
		return "start"
	case MatchStartEnd:
		return "start_end"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// ParseMatchMode accepts "start" or "start_end".
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "":
		return MatchStart, nil
	case "start_end", "start-end":
		return MatchStartEnd, nil
	default:
		return 0, fmt.Errorf("unknown match mode %q: want start or start_end", s)
	}
}

// Grouper merges recording groups. The zero value matches on start time and
// leaves channel codes alone.
type Grouper struct {
	Mode MatchMode
	// ResolveChannels reassigns a repeated channel code within a finished group
	// to the single canonical code the group lacks.
	ResolveChannels bool
}

// Group flattens groups in order, drops records that duplicate an earlier one,
// and rebuilds groups by seeding each with the first unconsumed record and
// adding every later record that matches it. Single-record groups and channel
// conflicts that cannot be resolved come back as warnings. Input slices are not
// modified.
func (g Grouper) Group(groups []domain.RecordingGroup) ([]domain.RecordingGroup, []domain.Warning, error) {
	var records []domain.ChannelRecord
	for gi, group := range groups {
		for ri := range group {
			if err := validate(&group[ri]); err != nil {
				return nil, nil, &domain.DecodeError{
					Kind:   domain.ErrMalformedGroup,
					Block:  fmt.Sprintf("group %d record %d", gi, ri),
					Detail: err.Error(),
				}
			}
			records = append(records, group[ri])
		}
	}

	// used marks duplicates first, then records already placed in a group.
	used := make([]bool, len(records))
	for i := range records {
		if used[i] {
			continue
		}
		for j := i + 1; j < len(records); j++ {
			if !used[j] && records[i].Duplicates(&records[j]) {
				used[j] = true
			}
		}
	}

	withEnd := g.Mode == MatchStartEnd
	var out []domain.RecordingGroup
	var warnings domain.Warnings
	for i := range records {
		if used[i] {
			continue
		}
		used[i] = true
		group := domain.RecordingGroup{records[i]}
		for j := i + 1; j < len(records); j++ {
			if !used[j] && records[i].SameEvent(&records[j], withEnd) {
				group = append(group, records[j])
				used[j] = true
			}
		}

		if len(group) == 1 {
			r := &group[0]
			warnings.Add(domain.WarnUngroupedChannel, r.ID(),
				"single-channel recording starting %s has no matching channels", r.StartTime.UTC().Format(time.RFC3339Nano))
		}
		if g.ResolveChannels {
			group = resolveChannels(group, &warnings)
		}
		out = append(out, group)
	}
	return out, warnings, nil
}

// resolveChannels disambiguates channel codes among records of the same units.
// group is owned by the caller's loop, so its elements are replaced in place.
func resolveChannels(group domain.RecordingGroup, warnings *domain.Warnings) domain.RecordingGroup {
	byUnits := make(map[domain.Units][]int)
	var order []domain.Units
	for i := range group {
		u := group[i].Units
		if _, ok := byUnits[u]; !ok {
			order = append(order, u)
		}
		byUnits[u] = append(byUnits[u], i)
	}

	for _, u := range order {
		idx := byUnits[u]
		subset := make([]domain.ChannelRecord, len(idx))
		for k, i := range idx {
			subset[k] = group[i]
		}
		resolved, err := domain.ResolveChannelConflicts(subset)
		if err != nil {
			warnings.Add(domain.WarnChannelConflict, group.Key(), "%s records: %v", u, err)
			continue
		}
		for k, i := range idx {
			group[i] = resolved[k]
		}
	}
	return group
}

func validate(r *domain.ChannelRecord) error {
	switch {
	case r.Network == "":
		return fmt.Errorf("%s: empty network code", r.ID())
	case r.Station == "":
		return fmt.Errorf("%s: empty station code", r.ID())
	case r.StartTime.IsZero():
		return fmt.Errorf("%s: no start time", r.ID())
	case !domain.IsCanonicalChannel(r.Channel):
		return fmt.Errorf("%s: channel %q is not one of %v", r.ID(), r.Channel, domain.CanonicalChannels)
	case !r.Sampling.Valid():
		return fmt.Errorf("%s: sample rate %v", r.ID(), r.Sampling.Rate())
	}
	return nil
}
