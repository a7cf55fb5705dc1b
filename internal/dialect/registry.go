// Package dialect decodes strong-motion recorder files into channel records.
//
// Each supported recorder layout implements [Dialect]. A [Registry] holds the
// dialects in a fixed order, picks the one whose sniff predicate accepts a file,
// and dispatches the decode. Decoders read through an [fs.FS] and hold no state
// between calls, so one Registry may be shared by concurrent workers.
package dialect

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// Dialect is one recorder file layout.
type Dialect interface {
	// Name is the stable identifier used in configuration and output.
	Name() string
	// Sniff reports whether name looks like this dialect. It reads at most a few
	// lines and never fails; unreadable files do not match.
	Sniff(fsys fs.FS, name string) bool
	// Decode reads name into one recording group.
	Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error)
}

// Options are decode-time parameters. The zero value decodes everything.
type Options struct {
	// Format forces a dialect by name. If that dialect does not sniff the file a
	// format_mismatch warning is recorded and detection runs instead.
	Format string
	// StationTypes restricts COSMOS channel blocks to these station-type codes.
	StationTypes []int
	// Units keeps only the listed subseries. Empty keeps all.
	Units []domain.Units
	// NetworkCodes replaces the built-in FDSN vocabulary used by DMG.
	NetworkCodes []string
}

func (o Options) wantUnits(u domain.Units) bool {
	return len(o.Units) == 0 || slices.Contains(o.Units, u)
}

func (o Options) wantStationType(t int) bool {
	return len(o.StationTypes) == 0 || slices.Contains(o.StationTypes, t)
}

// Registry selects and runs dialects.
type Registry struct {
	dialects []Dialect
	fallback map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fallback: make(map[string]bool)}
}

// Default returns a registry with every built-in dialect; slist is the generic fallback.
func Default() *Registry {
	r := NewRegistry()
	r.Register(COSMOS{})
	r.Register(GeoNet{})
	r.Register(CWB{})
	r.Register(DMG{})
	r.Register(KNET{})
	r.Register(SMC{})
	r.RegisterFallback(SLIST{})
	return r
}

// Register adds a specific dialect. Registering a name twice replaces the earlier entry.
func (r *Registry) Register(d Dialect) {
	r.add(d, false)
}

// RegisterFallback adds a generic dialect that loses ties against a single specific match.
func (r *Registry) RegisterFallback(d Dialect) {
	r.add(d, true)
}

func (r *Registry) add(d Dialect, fallback bool) {
	name := d.Name()
	r.dialects = slices.DeleteFunc(r.dialects, func(x Dialect) bool { return x.Name() == name })
	r.dialects = append(r.dialects, d)
	r.fallback[name] = fallback
}

// Names lists registered dialects in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.dialects))
	for i, d := range r.dialects {
		out[i] = d.Name()
	}
	return out
}

// Lookup finds a dialect by name, case-insensitively.
func (r *Registry) Lookup(name string) (Dialect, bool) {
	for _, d := range r.dialects {
		if strings.EqualFold(d.Name(), name) {
			return d, true
		}
	}
	return nil, false
}

// Detect runs every sniff predicate against name. One match wins. Several
// matches resolve only when exactly one of them is a specific dialect and the
// rest are fallbacks.
func (r *Registry) Detect(fsys fs.FS, name string) (Dialect, error) {
	var matches, specific []Dialect
	for _, d := range r.dialects {
		if !d.Sniff(fsys, name) {
			continue
		}
		matches = append(matches, d)
		if !r.fallback[d.Name()] {
			specific = append(specific, d)
		}
	}

	switch {
	case len(matches) == 0:
		return nil, &domain.DecodeError{Kind: domain.ErrNoMatchingFormat, Path: name}
	case len(matches) == 1:
		return matches[0], nil
	case len(specific) == 1:
		return specific[0], nil
	default:
		names := make([]string, len(matches))
		for i, d := range matches {
			names[i] = d.Name()
		}
		return nil, &domain.DecodeError{
			Kind:   domain.ErrAmbiguousFormat,
			Path:   name,
			Detail: "matches " + strings.Join(names, ", "),
		}
	}
}

// Decode picks a dialect (forced by opts.Format or detected) and decodes name.
func (r *Registry) Decode(ctx context.Context, fsys fs.FS, name string, opts Options) (domain.Decoded, error) {
	if err := ctx.Err(); err != nil {
		return domain.Decoded{}, err
	}

	var warnings domain.Warnings
	var d Dialect
	if opts.Format != "" {
		forced, ok := r.Lookup(opts.Format)
		switch {
		case !ok:
			warnings.Add(domain.WarnFormatMismatch, name, "unknown format %q, detecting instead", opts.Format)
		case !forced.Sniff(fsys, name):
			warnings.Add(domain.WarnFormatMismatch, name, "file does not look like %s, detecting instead", forced.Name())
		default:
			d = forced
		}
	}
	if d == nil {
		var err error
		if d, err = r.Detect(fsys, name); err != nil {
			return domain.Decoded{}, err
		}
	}

	out, err := d.Decode(ctx, fsys, name, opts)
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("decode %s as %s: %w", name, d.Name(), err)
	}
	out.Format = d.Name()
	out.Path = name
	out.Warnings = append([]domain.Warning(warnings), out.Warnings...)
	return out, nil
}
