// Package fixture renders synthetic recorder files for every supported dialect.
// Samples are rounded to the precision each layout prints, so a decoded file
// reproduces the builder's input exactly (before any dialect scaling).
package fixture

import (
	"math"
	"strings"
	"testing/fstest"
	"time"
)

// EventTime is the UTC start time shared by the catalog fixtures.
var EventTime = time.Date(2016, 11, 13, 11, 2, 56, 250000000, time.UTC)

// Wave returns n samples of a decaying sine of the given amplitude, rounded to
// decimals places. phase shifts the waveform so components differ.
func Wave(n int, amplitude, phase float64, decimals int) []float64 {
	out := make([]float64, n)
	scale := math.Pow(10, float64(decimals))
	for i := range out {
		t := float64(i)
		v := amplitude * math.Exp(-t/float64(max(n, 1))) * math.Sin(2*math.Pi*t/50+phase)
		out[i] = math.Round(v*scale) / scale
	}
	return out
}

// Counts returns n integer samples for dialects that store raw counts.
func Counts(n int, amplitude, phase float64) []int {
	w := Wave(n, amplitude, phase, 0)
	out := make([]int, n)
	for i, v := range w {
		out[i] = int(v)
	}
	return out
}

// FS wraps rendered files in a MapFS.
func FS(files map[string][]byte) fstest.MapFS {
	out := make(fstest.MapFS, len(files))
	for name, data := range files {
		out[name] = &fstest.MapFile{Data: data}
	}
	return out
}

// Catalog renders one representative file (or file set) per dialect, keyed by
// file name. Every entry decodes to a north, east and vertical recording,
// except smc.smc which holds one channel and dmg.v2 which also carries
// velocity and displacement. The three knet.* files form one recording.
func Catalog() map[string][]byte {
	files := map[string][]byte{
		"cosmos.v1":  COSMOS(SampleCOSMOS(200)...),
		"geonet.V2A": GeoNet(SampleGeoNet(200)),
		"cwb.txt":    CWB(SampleCWB(200)),
		"dmg.v2":     DMG(SampleDMG(200)...),
		"smc.smc":    SMC(SampleSMC(200)),
		"slist.ascii": SLIST(
			SLISTSeries{ID: "XX_TEST_00_HNN_D", Start: EventTime, Rate: 100, Unit: "cm/s^2", Samples: Wave(200, 12, 0, 6)},
			SLISTSeries{ID: "XX_TEST_00_HNE_D", Start: EventTime, Rate: 100, Unit: "cm/s^2", Samples: Wave(200, 9, 1, 6)},
			SLISTSeries{ID: "XX_TEST_00_HNZ_D", Start: EventTime, Rate: 100, Unit: "cm/s^2", Samples: Wave(200, 5, 2, 6)},
		),
	}
	for name, data := range KNET("knet", SampleKNET(200)) {
		files[name] = data
	}
	return files
}

// lines joins rendered lines with trailing newline.
func lines(ls []string) []byte {
	return []byte(strings.Join(ls, "\n") + "\n")
}

// place writes s into line starting at column col, padding with spaces.
func place(line []byte, col int, s string) []byte {
	for len(line) < col+len(s) {
		line = append(line, ' ')
	}
	copy(line[col:], s)
	return line
}

// filled returns n copies of v.
func filled[T any](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}
