package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/couchcryptid/strong-motion-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var decodedOpts = cmp.Options{
	cmp.AllowUnexported(domain.Sampling{}),
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
}

func newValidateCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Decode files twice and check record invariants and determinism",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), s, cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		},
	}
}

func runValidate(ctx context.Context, s *settings, out, stderr io.Writer, args []string) error {
	p, dec, err := s.pipeline(stderr)
	if err != nil {
		return err
	}
	g, err := s.grouper()
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

	phases := []*phase{
		validateDecode(report, args),
		validateDeterminism(ctx, dec, refs, args),
		validateRecords(report.Groups),
		validateRegroup(report.Groups, g.Group),
	}

	fmt.Fprintln(out, "=== Strong-Motion Decode Validation ===")
	fmt.Fprintln(out)
	allPassed := true
	for _, ph := range phases {
		status := "PASS"
		if !ph.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(ph.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", ph.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Files: %d, failed: %d, records: %d, groups: %d, duplicates: %d, warnings: %d\n",
		report.Files, report.Failed, report.Records, len(report.Groups), report.Duplicates, len(report.Warnings))

	for _, ph := range phases {
		if ph.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", ph.name)
		for i, e := range ph.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return nil
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return fmt.Errorf("validation failed")
}

func validateDecode(report pipeline.Report, args []string) *phase {
	ph := &phase{name: "Every file decodes"}
	for _, fe := range report.Errors {
		ph.errorf("%s: %s: %v", args[fe.Index], domain.ErrorKind(fe.Err), fe.Err)
	}
	return ph
}

// validateDeterminism decodes each file twice and diffs the results.
func validateDeterminism(ctx context.Context, dec pipeline.Decoder, refs []domain.FileRef, args []string) *phase {
	ph := &phase{name: "Decoding is deterministic"}
	for i, ref := range refs {
		first, err1 := dec.DecodeFile(ctx, ref)
		second, err2 := dec.DecodeFile(ctx, ref)
		if (err1 == nil) != (err2 == nil) {
			ph.errorf("%s: first error %v, second error %v", args[i], err1, err2)
			continue
		}
		if err1 != nil {
			if err1.Error() != err2.Error() {
				ph.errorf("%s: error changed: %q then %q", args[i], err1, err2)
			}
			continue
		}
		if diff := cmp.Diff(first, second, decodedOpts); diff != "" {
			ph.errorf("%s: decoded output differs (-first +second):\n%s", args[i], diff)
		}
	}
	return ph
}

func validateRecords(groups []domain.RecordingGroup) *phase {
	ph := &phase{name: "Records satisfy channel invariants"}
	for _, g := range groups {
		for i := range g {
			r := &g[i]
			id := r.ID()
			if r.Network == "" {
				ph.errorf("%s: empty network code", id)
			}
			if r.Station == "" {
				ph.errorf("%s: empty station code", id)
			}
			if r.Location == "" {
				ph.errorf("%s: empty location code", id)
			}
			if !domain.IsCanonicalChannel(r.Channel) {
				ph.errorf("%s: channel %q is not canonical", id, r.Channel)
			}
			if r.StartTime.IsZero() {
				ph.errorf("%s: zero start time", id)
			}
			if !r.Sampling.Valid() {
				ph.errorf("%s: invalid sampling rate %v interval %v", id, r.Sampling.Rate(), r.Sampling.Interval())
			}
			if r.NumSamples() == 0 {
				ph.errorf("%s: no samples", id)
			}
			for j, v := range r.Samples {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					ph.errorf("%s: sample %d is %v", id, j, v)
					break
				}
			}
		}
	}
	return ph
}

// validateRegroup feeds the grouped output back through the grouper, which
// must hand the same groups back.
func validateRegroup(groups []domain.RecordingGroup, group func([]domain.RecordingGroup) ([]domain.RecordingGroup, []domain.Warning, error)) *phase {
	ph := &phase{name: "Regrouping is idempotent"}
	again, _, err := group(groups)
	if err != nil {
		ph.errorf("regroup: %v", err)
		return ph
	}
	if diff := cmp.Diff(groups, again, decodedOpts); diff != "" {
		ph.errorf("groups differ after regrouping (-first +second):\n%s", diff)
	}
	return ph
}
