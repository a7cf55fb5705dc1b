package fixture

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// COSMOSChannel is one channel block of a COSMOS V0/V1 file.
type COSMOSChannel struct {
	Network, Station, Name string
	Uncorrected            bool
	Units                  int // 1 acceleration, 2 velocity
	StationType            int
	Angle                  int
	Start                  time.Time
	Interval               float64
	Lat, Lon               float64
	Comments               []string  // written verbatim
	Samples                []float64 // printed %10.5f
}

// COSMOS renders stacked channel blocks. A zero Start writes zero time fields.
func COSMOS(chans ...COSMOSChannel) []byte {
	var ls []string
	for i, ch := range chans {
		kind, unitName, unitCode := "Corrected", "acceleration", "cm/sec2 (04)"
		if ch.Uncorrected {
			kind = "Uncorrected"
		}
		if ch.Units == 2 {
			unitName, unitCode = "velocity", "cm/sec (05)"
		}
		ls = append(ls,
			kind+" acceleration (Format v01.20 with 13 text lines) Src: fixture",
			"Record of                 Earthquake of "+ch.Start.Format("Jan 2, 2006"),
			"Hypocenter: 42.690 S  173.020 E  H= 15km  Mw=7.8",
			"Origin: "+ch.Start.Format("01/02/2006, 15:04:05.000")+" UTC",
			fmt.Sprintf("Statn No: 01-%05d  Code: %s-%s  Station: %s", 100+i, ch.Network, ch.Station, ch.Name),
			fmt.Sprintf("Coords: %8.4f %9.4f   Site geology: unknown", ch.Lat, ch.Lon),
			"Recorder: fixture  s/n: 0001  (3 Chns of 3 at Sta)",
			"Data timing: nominal",
			"Processed: fixture",
			fmt.Sprintf("Record length: %.3f sec", float64(len(ch.Samples))*ch.Interval),
			fmt.Sprintf("Chan %d: %d deg", i+1, ch.Angle),
			"Raw record id: fixture",
			"Processing notes: none",
		)

		c := civilOf(ch.Start)
		ints := filled(100, -999)
		ints[1] = ch.Units
		ints[18] = ch.StationType
		ints[39] = c.year
		ints[40] = c.yday
		ints[41] = c.month
		ints[42] = c.day
		ints[43] = c.hour
		ints[44] = c.minute
		ints[53] = ch.Angle
		ls = append(ls, "100 Integer-header values follow on 10 lines, Format= (10I8)")
		ls = append(ls, rows(len(ints), 10, func(j int) string { return fmt.Sprintf("%8d", ints[j]) })...)

		reals := filled(100, -999.0)
		reals[0] = ch.Lat
		reals[1] = ch.Lon
		reals[29] = c.seconds()
		reals[33] = ch.Interval
		reals[34] = float64(len(ch.Samples)) * ch.Interval
		ls = append(ls, "100 Real-header values follow on 17 lines, Format= (6F13.6)")
		ls = append(ls, rows(len(reals), 6, func(j int) string { return fmt.Sprintf("%13.6f", reals[j]) })...)

		ls = append(ls, fmt.Sprintf("%4d Comment line(s) follow, each starting with a \"|\":", len(ch.Comments)))
		ls = append(ls, ch.Comments...)

		ls = append(ls, fmt.Sprintf("%8d %s pts, approx %d secs, units=%s, Format=(8F10.5)",
			len(ch.Samples), unitName, int(float64(len(ch.Samples))*ch.Interval), unitCode))
		ls = append(ls, rows(len(ch.Samples), 8, func(j int) string { return fmt.Sprintf("%10.5f", ch.Samples[j]) })...)
		ls = append(ls, fmt.Sprintf("End-of-data for Chan %d %s", i+1, unitName))
	}
	return lines(ls)
}

// SampleCOSMOS returns a north, east and vertical block at 100 Hz.
func SampleCOSMOS(n int) []COSMOSChannel {
	out := make([]COSMOSChannel, 0, 3)
	for i, angle := range []int{360, 90, 500} {
		out = append(out, COSMOSChannel{
			Network: "CE", Station: "23837", Name: "Hollister City Hall",
			Units: 1, StationType: 10, Angle: angle,
			Start: EventTime, Interval: 0.01,
			Lat: 36.8510, Lon: -121.4020,
			Comments: []string{"| Sensor: FBA-23"},
			Samples:  Wave(n, 120, float64(i), 5),
		})
	}
	return out
}

// GeoNetChannel is one component of a GeoNet file.
type GeoNetChannel struct {
	Component string    // "N28W", "S62W", "Up"
	Samples   []float64 // mm/s², printed %8.1f
}

// GeoNetFile is a three-block GNS Science accelerogram.
type GeoNetFile struct {
	Uncorrected    bool
	Station, Name  string
	Start          time.Time
	Rate           float64 // V1
	Interval       float64 // V2
	LatDMS, LonDMS [3]float64
	Channels       []GeoNetChannel
}

// GeoNet renders a V1A (Uncorrected) or V2A file. V2 velocity and
// displacement series repeat the acceleration samples. A zero Start writes
// zero time fields.
func GeoNet(f GeoNetFile) []byte {
	kind := "Corrected accelerogram"
	if f.Uncorrected {
		kind = "Uncorrected accelerogram"
	}
	var ls []string
	for _, ch := range f.Channels {
		ls = append(ls,
			"GNS Science  "+kind+"  fixture",
			"Site "+f.Station+"  "+f.Name,
			f.Name,
			"Instrument type  CUSP3C",
			"Recorder s/n 0001",
			"Earthquake of "+f.Start.Format("2006 January 2 15:04 UTC"),
			"Epicentre 42.69 S 173.02 E",
			"Magnitude 7.8",
			"Depth 15 km",
			"Bandpass 0.10 to 25.0 Hz",
			"Processed fixture",
			"Comment none",
			"Component "+ch.Component+"  fixture",
			"Units mm/s/s",
			"Peak value",
			"Data follows",
		)

		n := float64(len(ch.Samples))
		c := civilOf(f.Start)
		hdr := make([]float64, 100)
		hdr[8] = float64(c.year)
		hdr[9] = float64(c.month)
		hdr[18] = float64(c.day)
		hdr[19] = float64(c.hour)
		copy(hdr[20:23], f.LatDMS[:])
		copy(hdr[23:26], f.LonDMS[:])
		hdr[38] = float64(c.minute)
		hdr[39] = float64(c.second)*1000 + float64(c.nanos)/1e6
		if f.Uncorrected {
			hdr[30] = n
			hdr[40] = f.Rate
		} else {
			hdr[33], hdr[34], hdr[35] = n, n, n
			hdr[65] = f.Interval
		}
		ls = append(ls, rows(len(hdr), 10, func(j int) string {
			return " " + strconv.FormatFloat(hdr[j], 'f', -1, 64)
		})...)

		data := rows(len(ch.Samples), 10, func(j int) string { return fmt.Sprintf("%8.1f", ch.Samples[j]) })
		ls = append(ls, data...)
		if !f.Uncorrected {
			ls = append(ls, data...)
			ls = append(ls, data...)
		}
	}
	return lines(ls)
}

// SampleGeoNet returns a V2A file at 100 Hz.
func SampleGeoNet(n int) GeoNetFile {
	return GeoNetFile{
		Station: "WTMC", Name: "Waitaha Coast",
		Start: EventTime, Interval: 0.01,
		LatDMS: [3]float64{41, 17, 30}, LonDMS: [3]float64{174, 46, 12},
		Channels: []GeoNetChannel{
			{Component: "N28W", Samples: Wave(n, 900, 0, 1)},
			{Component: "S62W", Samples: Wave(n, 700, 1, 1)},
			{Component: "Up", Samples: Wave(n, 400, 2, 1)},
		},
	}
}

// CWBFile is a Central Weather Bureau record.
type CWBFile struct {
	Station, Name  string
	Lat, Lon       float64
	Start          time.Time // UTC; written as UTC+8
	Rate           float64
	RecordLength   float64 // zero writes the true span
	InstrumentKind string
	Z, N, E        []float64 // printed %10.3f
}

// CWB renders a four-column CWB file.
func CWB(f CWBFile) []byte {
	length := f.RecordLength
	if length == 0 {
		length = float64(len(f.Z)) / f.Rate
	}
	local := f.Start.Add(8 * time.Hour)
	ls := []string{
		"#Earthquake Information",
		"#OriginTime: " + local.Format("2006/01/02-15:04:05"),
		"#StationCode: " + f.Station,
		"#StationName: " + f.Name,
		fmt.Sprintf("#StationLongitude: %.4f", f.Lon),
		fmt.Sprintf("#StationLatitude: %.4f", f.Lat),
		"#InstrumentKind: " + f.InstrumentKind,
		"#StartTime: " + local.Format("2006/01/02-15:04:05.000"),
		"#RecordLength: " + strconv.FormatFloat(length, 'f', -1, 64),
		"#SampleRate: " + strconv.FormatFloat(f.Rate, 'f', -1, 64),
		"#AmplitudeUnit: gal",
		"#Data: 4F10.3",
	}
	for i := range f.Z {
		ls = append(ls, fmt.Sprintf("%10.3f%10.3f%10.3f%10.3f", float64(i)/f.Rate, f.Z[i], f.N[i], f.E[i]))
	}
	return lines(ls)
}

// SampleCWB returns a 100 Hz record.
func SampleCWB(n int) CWBFile {
	return CWBFile{
		Station: "TAP003", Name: "Taipei Dongmen",
		Lat: 25.0372, Lon: 121.5186,
		Start: EventTime, Rate: 100, InstrumentKind: "A900A",
		Z: Wave(n, 30, 2, 3), N: Wave(n, 80, 0, 3), E: Wave(n, 60, 1, 3),
	}
}

// DMGChannel is one channel block of a DMG Volume 2 file.
type DMGChannel struct {
	Station, Name string
	Network       string // two-letter prefix of the station number token
	Lat, Lon      float64
	Start         time.Time
	Trigger       string // raw trigger time text; empty renders Start
	Angle         int
	Interval      float64
	// Acc, Vel and Disp are printed with three decimals; an empty series is omitted.
	Acc, Vel, Disp []float64
}

// DMG renders a corrected (Volume 2) file. A zero Start writes zero time
// fields into the integer header.
func DMG(chans ...DMGChannel) []byte {
	var ls []string
	for i, ch := range chans {
		trigger := ch.Trigger
		if trigger == "" {
			sec := float64(ch.Start.Second()) + float64(ch.Start.Nanosecond())/1e9
			trigger = fmt.Sprintf("TRIGGER TIME: %s, %s:%06.3f GMT", ch.Start.Format("01/02/06"), ch.Start.Format("15:04"), sec)
		}
		station := place(nil, 0, "STATION NO.")
		station = place(station, 12, fmt.Sprintf("%-5s", ch.Station))
		station = place(station, 21, hemisphere(ch.Lat, "%5.2f", 'N', 'S'))
		station = place(station, 30, hemisphere(ch.Lon, "%6.2f", 'E', 'W'))

		ls = append(ls,
			"CORRECTED ACCELEROGRAM DATA       PROCESSED: fixture",
			ch.Name+"   STATION NO. "+ch.Network+ch.Station,
			"FIXTURE EARTHQUAKE",
			"EPICENTER: 42.690S 173.020E   DEPTH 15 KM",
			string(place([]byte("INSTR TYPE=FBA-23 (S/N 1234)"), 36, trigger)),
			string(station),
			ch.Name+"  STRUCTURE: FREE FIELD",
		)
		for j := 7; j < 25; j++ {
			ls = append(ls, fmt.Sprintf("COMMENT %02d", j))
		}

		c := civilOf(ch.Start)
		ints := filled(112, -999)
		ints[16] = c.hour
		ints[17] = c.minute
		ints[18] = c.second
		ints[21] = c.month
		ints[22] = c.day
		ints[23] = c.year
		ints[26] = ch.Angle
		ints[29] = len(ch.Name)
		ints[52] = len(ch.Acc)
		ints[63] = len(ch.Vel)
		ints[65] = len(ch.Disp)
		ls = append(ls, rows(len(ints), 16, func(j int) string { return fmt.Sprintf("%5d", ints[j]) })...)

		reals := filled(104, -999.0)
		reals[60] = ch.Interval
		ls = append(ls, rows(len(reals), 8, func(j int) string { return fmt.Sprintf("%10.5f", reals[j]) })...)

		for _, sub := range []struct {
			name, unit string
			cols       int
			verb       string
			samples    []float64
		}{
			{"ACCEL", "CM/SEC/SEC", 8, "%10.3f", ch.Acc},
			{"VELOC", "CM/SEC", 6, "%12.4f", ch.Vel},
			{"DISPL", "CM", 8, "%10.3f", ch.Disp},
		} {
			if len(sub.samples) == 0 {
				continue
			}
			layout := "(8F10.3)"
			if sub.cols == 6 {
				layout = "(6F12.4)"
			}
			ls = append(ls, fmt.Sprintf("%5d POINTS OF %s DATA EQUALLY SPACED AT %.3f SEC, IN %s.  %s",
				len(sub.samples), sub.name, ch.Interval, sub.unit, layout))
			ls = append(ls, rows(len(sub.samples), sub.cols, func(j int) string { return fmt.Sprintf(sub.verb, sub.samples[j]) })...)
		}
		ls = append(ls, fmt.Sprintf("END OF DATA FOR CHANNEL %d", i+1))
	}
	return lines(ls)
}

// SampleDMG returns north, east and vertical blocks at 100 Hz, each with all
// three subseries.
func SampleDMG(n int) []DMGChannel {
	out := make([]DMGChannel, 0, 3)
	for i, angle := range []int{360, 90, 500} {
		out = append(out, DMGChannel{
			Station: "23837", Name: "HOLLISTER CITY HALL", Network: "CE",
			Lat: 36.85, Lon: -121.40,
			Start: EventTime, Angle: angle, Interval: 0.01,
			Acc:  Wave(n, 150, float64(i), 3),
			Vel:  Wave(n, 20, float64(i)+0.5, 3),
			Disp: Wave(n, 4, float64(i)+1, 3),
		})
	}
	return out
}

// KNETComponent is one K-NET component file.
type KNETComponent struct {
	Dir    string // "N-S", "E-W", "U-D"
	Counts []int
}

// KNETFile is a three-file K-NET record.
type KNETFile struct {
	Station            string
	Lat, Lon           float64
	Start              time.Time // UTC, whole seconds; written as JST
	Rate               int
	ScaleNum, ScaleDen int // gal per count is ScaleNum/ScaleDen
	EW, NS, UD         KNETComponent
}

// KNET renders stem.EW, stem.NS and stem.UD.
func KNET(stem string, f KNETFile) map[string][]byte {
	out := make(map[string][]byte, 3)
	for ext, comp := range map[string]KNETComponent{".EW": f.EW, ".NS": f.NS, ".UD": f.UD} {
		jst := f.Start.Add(9 * time.Hour).Format("2006/01/02 15:04:05")
		duration := float64(len(comp.Counts)) / float64(f.Rate)
		ls := []string{
			"Origin Time       " + jst,
			"Lat.              38.103",
			"Long.             142.860",
			"Depth. (km)       24",
			"Mag.              9.0",
			"Station Code      " + f.Station,
			"Station Lat.      " + strconv.FormatFloat(f.Lat, 'f', -1, 64),
			"Station Long.     " + strconv.FormatFloat(f.Lon, 'f', -1, 64),
			"Station Height(m) 200",
			"Record Time       " + jst,
			fmt.Sprintf("Sampling Freq(Hz) %dHz", f.Rate),
			"Duration Time(s)  " + strconv.FormatFloat(duration, 'f', -1, 64),
			"Dir.              " + comp.Dir,
			fmt.Sprintf("Scale Factor      %d(gal)/%d", f.ScaleNum, f.ScaleDen),
			"Max. Acc. (gal)   0.0",
			"Last Correction   " + jst,
			"Memo.",
		}
		ls = append(ls, rows(len(comp.Counts), 8, func(j int) string { return fmt.Sprintf(" %8d", comp.Counts[j]) })...)
		out[stem+ext] = lines(ls)
	}
	return out
}

// SampleKNET returns a 100 Hz record.
func SampleKNET(n int) KNETFile {
	return KNETFile{
		Station: "MYG004", Lat: 38.7312, Lon: 141.0193,
		Start: EventTime.Truncate(time.Second), Rate: 100,
		ScaleNum: 3920, ScaleDen: 6182761,
		EW: KNETComponent{Dir: "E-W", Counts: Counts(n, 50000, 1)},
		NS: KNETComponent{Dir: "N-S", Counts: Counts(n, 60000, 0)},
		UD: KNETComponent{Dir: "U-D", Counts: Counts(n, 30000, 2)},
	}
}

// SMCMissing is the integer sentinel written into unused SMC header fields.
const SMCMissing = -32768

// SMCFile is a single-channel USGS SMC record.
type SMCFile struct {
	Station        string // first four characters land in the station slot; empty uses NumericStation
	NumericStation int
	Start          time.Time // millisecond precision
	// Vertical and Horizontal are the orientation fields; use SMCMissing for absent.
	Vertical, Horizontal int
	Problem              int
	Structure            int // SMCMissing for a free-field sensor
	Rate                 float64
	Lat, Lon             float64
	Comments             []string
	Samples              []float64 // printed %10.4f
}

// SMC renders an SMC corrected accelerogram. A zero Start writes zero year
// and day of year.
func SMC(f SMCFile) []byte {
	ls := []string{
		"2 CORRECTED ACCELEROGRAM",
		"FIXTURE EARTHQUAKE",
		strings.TrimSpace(f.Station + " FIXTURE SITE"),
		"FREE FIELD",
		"USGS",
		"FIXTURE",
		"", "", "", "", "",
	}
	if f.Station == "" {
		ls[2] = ""
	}

	c := civilOf(f.Start)
	ints := filled(48, SMCMissing)
	ints[1] = c.year
	ints[2] = c.yday
	ints[3] = c.hour
	ints[4] = c.minute
	ints[5] = c.second
	ints[6] = c.nanos / int(time.Millisecond)
	ints[12] = f.Vertical
	ints[13] = f.Horizontal
	ints[15] = len(f.Comments)
	ints[16] = len(f.Samples)
	ints[17] = f.Problem
	ints[18] = f.Structure
	ints[29] = f.NumericStation
	ls = append(ls, rows(len(ints), 8, func(j int) string { return fmt.Sprintf("%10d", ints[j]) })...)

	reals := filled(50, -999.0)
	reals[1] = f.Rate
	reals[10] = f.Lat
	reals[11] = f.Lon
	ls = append(ls, rows(len(reals), 5, func(j int) string { return fmt.Sprintf("%15.6f", reals[j]) })...)

	ls = append(ls, f.Comments...)
	ls = append(ls, rows(len(f.Samples), 8, func(j int) string { return fmt.Sprintf("%10.4f", f.Samples[j]) })...)
	return lines(ls)
}

// SampleSMC returns an east-west free-field record at 100 Hz.
func SampleSMC(n int) SMCFile {
	return SMCFile{
		Station: "PKD1", Start: EventTime,
		Vertical: SMCMissing, Horizontal: 90,
		Structure: SMCMissing,
		Rate:      100, Lat: 35.9, Lon: -120.43,
		Comments: []string{"|fixture comment"},
		Samples:  Wave(n, 90, 1, 4),
	}
}

// SLISTSeries is one series of a sample-list file.
type SLISTSeries struct {
	ID      string // NET_STA_LOC_CHA_Q
	Start   time.Time
	Rate    float64
	Unit    string
	Samples []float64
}

// SLIST renders the series back to back, six samples to a line.
func SLIST(series ...SLISTSeries) []byte {
	var ls []string
	for _, s := range series {
		ls = append(ls, fmt.Sprintf("TIMESERIES %s, %d samples, %s sps, %s, SLIST, FLOAT, %s",
			s.ID, len(s.Samples), strconv.FormatFloat(s.Rate, 'f', -1, 64),
			s.Start.Format("2006-01-02T15:04:05.000000"), s.Unit))
		ls = append(ls, rows(len(s.Samples), 6, func(j int) string {
			return " " + strconv.FormatFloat(s.Samples[j], 'f', -1, 64)
		})...)
	}
	return lines(ls)
}

// civil holds the header time fields of a timestamp.
type civil struct {
	year, month, day, yday      int
	hour, minute, second, nanos int
}

// civilOf splits t into header fields; the zero time gives all zeros, the way
// a recorder without a time lock fills its header.
func civilOf(t time.Time) civil {
	if t.IsZero() {
		return civil{}
	}
	return civil{
		year: t.Year(), month: int(t.Month()), day: t.Day(), yday: t.YearDay(),
		hour: t.Hour(), minute: t.Minute(), second: t.Second(), nanos: t.Nanosecond(),
	}
}

func (c civil) seconds() float64 {
	return float64(c.second) + float64(c.nanos)/1e9
}

// rows lays n rendered values out perRow to a line.
func rows(n, perRow int, render func(int) string) []string {
	out := make([]string, 0, (n+perRow-1)/perRow)
	var b strings.Builder
	for j := 0; j < n; j++ {
		b.WriteString(render(j))
		if (j+1)%perRow == 0 || j == n-1 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	return out
}

func hemisphere(v float64, verb string, pos, neg byte) string {
	h := pos
	if v < 0 {
		h = neg
	}
	return fmt.Sprintf(verb, math.Abs(v)) + string(h)
}
