package dialect

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
)

// ctxCheckRows is how many data rows a cursor reads between context checks.
const ctxCheckRows = 512

// readLines loads a whole file as lines with trailing CR stripped.
func readLines(fsys fs.FS, name string) ([]string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimRight(data, "\r\n")
	if len(data) == 0 {
		return nil, nil
	}
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines, nil
}

// headLines returns up to n leading lines without reading the rest of the file.
// Errors yield nil; sniffing never fails loudly.
func headLines(fsys fs.FS, name string, n int) []string {
	f, err := fsys.Open(name)
	if err != nil {
		return nil
	}
	defer f.Close()

	out := make([]string, 0, n)
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	for len(out) < n && s.Scan() {
		out = append(out, strings.TrimRight(s.Text(), "\r"))
	}
	return out
}

// cursor walks a file's lines and reports failures against the 1-based line number.
type cursor struct {
	ctx   context.Context
	path  string
	lines []string
	pos   int // index of the next unread line
}

func newCursor(ctx context.Context, path string, lines []string) *cursor {
	return &cursor{ctx: ctx, path: path, lines: lines}
}

// line returns the 1-based number of the next unread line.
func (c *cursor) line() int { return c.pos + 1 }

func (c *cursor) malformed(block, format string, args ...any) error {
	return domain.Malformed(c.path, c.line(), block, format, args...)
}

// next returns the next line and advances.
func (c *cursor) next(block string) (string, error) {
	if c.pos >= len(c.lines) {
		return "", c.malformed(block, "unexpected end of file")
	}
	l := c.lines[c.pos]
	c.pos++
	return l, nil
}

// take returns the next n lines and advances past them.
func (c *cursor) take(n int, block string) ([]string, error) {
	if n < 0 || c.pos+n > len(c.lines) {
		return nil, c.malformed(block, "need %d lines, %d remain", n, len(c.lines)-c.pos)
	}
	out := c.lines[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// skip advances n lines.
func (c *cursor) skip(n int, block string) error {
	_, err := c.take(n, block)
	return err
}

// more reports whether any non-blank line remains.
func (c *cursor) more() bool {
	for _, l := range c.lines[c.pos:] {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

// checkpoint surfaces cancellation between blocks.
func (c *cursor) checkpoint() error {
	return c.ctx.Err()
}

// fixedInts reads rows of perRow integer fields, width characters each.
func (c *cursor) fixedInts(rows, perRow, width int, block string) ([]int, error) {
	vals, err := c.fixedFloats(rows, perRow, width, block)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		if v != math.Trunc(v) {
			return nil, c.malformed(block, "field %d: %v is not an integer", i, v)
		}
		out[i] = int(v)
	}
	return out, nil
}

// fixedFloats reads rows of perRow fixed-width numeric fields. A row may end early;
// a field inside the line that does not parse is an error.
func (c *cursor) fixedFloats(rows, perRow, width int, block string) ([]float64, error) {
	out := make([]float64, 0, rows*perRow)
	for r := 0; r < rows; r++ {
		l, err := c.next(block)
		if err != nil {
			return nil, err
		}
		vals, err := splitFixed(l, perRow, width)
		if err != nil {
			return nil, domain.Malformed(c.path, c.pos, block, "%v", err)
		}
		out = append(out, vals...)
	}
	return out, nil
}

// fixedSeries reads count values laid out perRow to a line, width characters each,
// over ceil(count/perRow) lines.
func (c *cursor) fixedSeries(count, perRow, width int, block string) ([]float64, error) {
	if count < 0 || perRow <= 0 || width <= 0 {
		return nil, c.malformed(block, "invalid layout %d values, %d per row, width %d", count, perRow, width)
	}
	rows := (count + perRow - 1) / perRow
	out := make([]float64, 0, count)
	for r := 0; r < rows; r++ {
		if r%ctxCheckRows == 0 {
			if err := c.checkpoint(); err != nil {
				return nil, err
			}
		}
		l, err := c.next(block)
		if err != nil {
			return nil, err
		}
		vals, err := splitFixed(l, perRow, width)
		if err != nil {
			return nil, domain.Malformed(c.path, c.pos, block, "%v", err)
		}
		out = append(out, vals...)
	}
	if len(out) != count {
		return nil, c.malformed(block, "declared %d values, found %d", count, len(out))
	}
	return out, nil
}

// fieldSeries reads count whitespace-separated values, consuming whole lines.
func (c *cursor) fieldSeries(count int, block string) ([]float64, error) {
	out := make([]float64, 0, count)
	for r := 0; len(out) < count; r++ {
		if r%ctxCheckRows == 0 {
			if err := c.checkpoint(); err != nil {
				return nil, err
			}
		}
		l, err := c.next(block)
		if err != nil {
			return nil, err
		}
		for _, f := range strings.Fields(l) {
			v, err := parseNumber(f)
			if err != nil {
				return nil, domain.Malformed(c.path, c.pos, block, "%v", err)
			}
			out = append(out, v)
		}
	}
	if len(out) != count {
		return nil, c.malformed(block, "declared %d values, found %d", count, len(out))
	}
	return out, nil
}

// splitFixed cuts a line into at most n fields of width characters. Fields past
// the end of the line are absent; a blank field inside the line is an error.
func splitFixed(l string, n, width int) ([]float64, error) {
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		lo := i * width
		if lo >= len(l) {
			break
		}
		hi := min(lo+width, len(l))
		f := strings.TrimSpace(l[lo:hi])
		if f == "" {
			if strings.TrimSpace(l[lo:]) == "" {
				break
			}
			return nil, fmt.Errorf("blank field %d", i)
		}
		v, err := parseNumber(f)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseNumber parses a Fortran-style real, accepting D exponents.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "Dd") {
		s = strings.NewReplacer("D", "E", "d", "e").Replace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}

// field returns l[lo:hi] clipped to the line, trimmed.
func field(l string, lo, hi int) string {
	if lo >= len(l) {
		return ""
	}
	return strings.TrimSpace(l[lo:min(hi, len(l))])
}

// requireValues fails when a header block decoded fewer than n values.
func (c *cursor) requireValues(have, n int, block string) error {
	if have < n {
		return c.malformed(block, "header has %d values, need %d", have, n)
	}
	return nil
}
