package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/reachscan/pkg/errors"
	"github.com/reachscan/pkg/model"
)

type checkFlags struct {
	dump      string
	class     string
	roots     []string
	rootClass string
	maxRoots  int
	expect    string
	record    bool
}

func newCheckCmd(a *app) *cobra.Command {
	f := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a class is strongly reachable from roots in a heap dump",
		Long: `Load an HPROF heap dump and search, from each root object, for an instance of
the target class. Roots come from --root object IDs, from instances of
--root-class, or both. The roots themselves are never matched.

With --expect the command exits with status 1 when the result contradicts the
expectation. Other statuses: 2 invalid input or config, 3 not found,
4 unreadable dump or storage, 5 scan failure, 6 database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.dump, "dump", "d", "", "Heap dump path or cos://key (required)")
	cmd.Flags().StringVar(&f.class, "class", "", "Fully qualified target class; subclasses match (required)")
	cmd.Flags().StringArrayVar(&f.roots, "root", nil, "Root object ID in hex, repeatable")
	cmd.Flags().StringVar(&f.rootClass, "root-class", "", "Scan from every instance of this class")
	cmd.Flags().IntVar(&f.maxRoots, "max-roots", 0, "Maximum instances of --root-class to scan (default from config)")
	cmd.Flags().StringVar(&f.expect, "expect", "", "Expected result: reachable or unreachable")
	cmd.Flags().BoolVar(&f.record, "record", false, "Store the report in the check history database")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, f *checkFlags) error {
	expect, err := model.ParseExpectation(f.expect)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid --expect", err)
	}
	roots, err := parseObjectIDs(f.roots)
	if err != nil {
		return err
	}

	svc, err := a.service(cmd.Context())
	if err != nil {
		return err
	}
	report, err := svc.Run(cmd.Context(), &model.CheckRequest{
		Dump:        f.dump,
		TargetClass: f.class,
		Roots:       roots,
		RootClass:   f.rootClass,
		MaxRoots:    f.maxRoots,
		Expect:      expect,
		Record:      f.record,
	})
	if err != nil {
		return err
	}

	if err := a.formatter().FormatReport(cmd.OutOrStdout(), report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if report.Verdict == model.VerdictFail {
		return errExpectationFailed
	}
	return nil
}

// parseObjectIDs parses hex object IDs with or without a 0x prefix.
func parseObjectIDs(values []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(values))
	for _, v := range values {
		s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(v), "0x"), "0X")
		id, err := strconv.ParseUint(s, 16, 64)
		if err != nil || id == 0 {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput, "invalid root object ID %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
