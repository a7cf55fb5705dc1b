// Command smconvert detects, decodes, and validates strong-motion recorder
// files from the command line.
//
// Usage:
//
//	smconvert detect data/*.V2A
//	smconvert decode --units acc data/MYG004.EW data/MYG004.NS data/MYG004.UD > groups.jsonl
//	smconvert validate --match-mode start_end data/*
package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/strong-motion-etl/internal/adapter/jsonl"
	"github.com/couchcryptid/strong-motion-etl/internal/dialect"
	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/couchcryptid/strong-motion-etl/internal/grouping"
	"github.com/couchcryptid/strong-motion-etl/internal/observability"
	"github.com/couchcryptid/strong-motion-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// settings are the flags shared by every subcommand.
type settings struct {
	format       string
	units        []string
	stationTypes []int
	networkCodes []string
	matchMode    string
	resolve      bool
	workers      int
	timeout      time.Duration
	logLevel     string
}

func newRootCmd() *cobra.Command {
	s := &settings{}
	root := &cobra.Command{
		Use:   "smconvert",
		Short: "Decode strong-motion recorder files into canonical channel records",
		Long: `smconvert reads strong-motion accelerograph files in any supported recorder
dialect (COSMOS, GeoNet, CWB, DMG, K-NET, SMC, or generic SLIST) and produces
canonical three-component recording groups.

Subcommands:
  detect     print the dialect each file belongs to
  decode     decode and group files, writing one JSON line per recording group
  validate   decode files twice and check record invariants and determinism`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&s.format, "format", "f", "", "force a dialect instead of detecting it")
	pf.StringSliceVar(&s.units, "units", nil, "keep only these subseries (acc, vel, disp)")
	pf.IntSliceVar(&s.stationTypes, "station-types", nil, "COSMOS station-type codes to accept")
	pf.StringSliceVar(&s.networkCodes, "network-codes", nil, "replace the DMG network vocabulary")
	pf.StringVar(&s.matchMode, "match-mode", "start", "grouping comparison: start or start_end")
	pf.BoolVar(&s.resolve, "resolve-channels", false, "reassign repeated channel codes within a group")
	pf.IntVarP(&s.workers, "workers", "w", 4, "files decoded concurrently")
	pf.DurationVar(&s.timeout, "timeout", 30*time.Second, "per-file decode deadline (0 disables)")
	pf.StringVar(&s.logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	root.AddCommand(newDetectCmd(s), newDecodeCmd(s), newValidateCmd(s))
	return root
}

func (s *settings) options() (dialect.Options, error) {
	opts := dialect.Options{
		Format:       s.format,
		StationTypes: s.stationTypes,
		NetworkCodes: s.networkCodes,
	}
	for _, u := range s.units {
		parsed, ok := domain.ParseUnits(u)
		if !ok {
			return dialect.Options{}, fmt.Errorf("unknown units %q (want acc, vel or disp)", u)
		}
		opts.Units = append(opts.Units, parsed)
	}
	return opts, nil
}

func (s *settings) grouper() (grouping.Grouper, error) {
	mode, err := grouping.ParseMatchMode(s.matchMode)
	if err != nil {
		return grouping.Grouper{}, err
	}
	return grouping.Grouper{Mode: mode, ResolveChannels: s.resolve}, nil
}

// pipeline builds a Process-only pipeline reading from the root filesystem.
func (s *settings) pipeline(stderr io.Writer) (*pipeline.Pipeline, *pipeline.FileDecoder, error) {
	opts, err := s.options()
	if err != nil {
		return nil, nil, err
	}
	g, err := s.grouper()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel(s.logLevel)}))
	dec := pipeline.NewFileDecoder(dialect.Default(), os.DirFS("/"), opts, s.timeout)
	p := pipeline.New(nil, dec, nil, logger, observability.NewUnregisteredMetrics(), 0,
		pipeline.WithWorkers(s.workers),
		pipeline.WithGrouper(g),
	)
	return p, dec, nil
}

func logLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return l
}

// fileRefs turns command-line paths into absolute file references.
func fileRefs(args []string) ([]domain.FileRef, error) {
	refs := make([]domain.FileRef, len(args))
	for i, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		refs[i] = domain.FileRef{Path: abs}
	}
	return refs, nil
}

func newDetectCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "detect FILE...",
		Short: "Print the dialect of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.OutOrStdout(), args)
		},
	}
}

func runDetect(out io.Writer, args []string) error {
	reg := dialect.Default()
	fsys := os.DirFS("/")
	failed := 0
	for _, arg := range args {
		name, err := detectOne(reg, fsys, arg)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s\t%s: %v\n", arg, domain.ErrorKind(err), err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", arg, name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files not recognised", failed, len(args))
	}
	return nil
}

func detectOne(reg *dialect.Registry, fsys fs.FS, arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	name, err := pipeline.FSName(abs)
	if err != nil {
		return "", err
	}
	d, err := reg.Detect(fsys, name)
	if err != nil {
		return "", err
	}
	return d.Name(), nil
}

func newDecodeCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "decode FILE...",
		Short: "Decode and group files, one JSON line per recording group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.Context(), s, cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		},
	}
}

func runDecode(ctx context.Context, s *settings, out, stderr io.Writer, args []string) error {
	p, _, err := s.pipeline(stderr)
	if err != nil {
		return err
	}
	refs, err := fileRefs(args)
	if err != nil {
		return err
	}

	report, err := p.Process(ctx, refs)
	if err != nil {
		return err
	}

	events := make([]domain.OutputEvent, 0, len(report.Groups))
	for _, g := range report.Groups {
		ev, err := domain.SerializeRecordingGroup(g, pipeline.GroupWarnings(g, report.Warnings))
		if err != nil {
			return err
		}
		events = append(events, ev)
	}
	if err := jsonl.NewWriter(out).LoadBatch(ctx, events); err != nil {
		return err
	}

	for _, fe := range report.Errors {
		fmt.Fprintf(stderr, "%s: %v\n", args[fe.Index], fe.Err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed to decode", report.Failed, report.Files)
	}
	return nil
}
