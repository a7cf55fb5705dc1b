package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/dialect"
	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// FileDecoder decodes file references against a filesystem through a dialect registry.
// It implements Decoder.
type FileDecoder struct {
	registry *dialect.Registry
	fsys     fs.FS
	opts     dialect.Options
	timeout  time.Duration
	clock    clockwork.Clock
}

// NewFileDecoder creates a decoder. A positive timeout bounds each file's decode.
func NewFileDecoder(registry *dialect.Registry, fsys fs.FS, opts dialect.Options, timeout time.Duration) *FileDecoder {
	return &FileDecoder{
		registry: registry,
		fsys:     fsys,
		opts:     opts,
		timeout:  timeout,
		clock:    clockwork.NewRealClock(),
	}
}

// SetClock swaps the clock that drives per-file deadlines.
func (d *FileDecoder) SetClock(c clockwork.Clock) {
	d.clock = c
}

// DecodeFile decodes ref.Path. A format named on the reference overrides the configured one.
func (d *FileDecoder) DecodeFile(ctx context.Context, ref domain.FileRef) (domain.Decoded, error) {
	name, err := FSName(ref.Path)
	if err != nil {
		return domain.Decoded{}, err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = clockwork.WithTimeout(ctx, d.clock, d.timeout)
		defer cancel()
	}

	opts := d.opts
	if ref.Format != "" {
		opts.Format = ref.Format
	}
	return d.registry.Decode(ctx, d.fsys, name, opts)
}

// FSName converts a slash or OS path into an fs.FS name. Leading slashes are
// dropped so absolute paths resolve against the filesystem root.
func FSName(p string) (string, error) {
	name := strings.TrimLeft(path.Clean(filepath.ToSlash(p)), "/")
	if name == "" || name == "." || !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid file path %q", p)
	}
	return name, nil
}
