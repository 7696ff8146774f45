// Package service runs reachability checks against heap dumps.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reachscan/internal/heapdump"
	"github.com/reachscan/internal/repository"
	"github.com/reachscan/internal/storage"
	"github.com/reachscan/pkg/compression"
	"github.com/reachscan/pkg/config"
	apperrors "github.com/reachscan/pkg/errors"
	"github.com/reachscan/pkg/model"
	"github.com/reachscan/pkg/parallel"
	"github.com/reachscan/pkg/reach"
	"github.com/reachscan/pkg/telemetry"
	"github.com/reachscan/pkg/utils"
)

// DumpOpener opens a dump reference and returns its reader and display
// location.
type DumpOpener func(ctx context.Context, ref string) (io.ReadCloser, string, error)

// Options configures a CheckService. Only Config is required.
type Options struct {
	Config *config.Config
	Logger utils.Logger

	// Checks stores reports. Nil disables recording and history.
	Checks repository.CheckRepository

	// Opener defaults to storage.Resolve over Config.Storage.
	Opener DumpOpener

	// NewID defaults to random UUIDs.
	NewID func() string
	Clock utils.Clock
}

// CheckService answers "is an instance of class C strongly reachable from
// these roots" for a heap dump.
type CheckService struct {
	config     *config.Config
	logger     utils.Logger
	checks     repository.CheckRepository
	open       DumpOpener
	newID      func() string
	clock      utils.Clock
	classifier reach.ReferenceClassifier
}

// New creates a CheckService.
func New(opts Options) (*CheckService, error) {
	if opts.Config == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "config is required")
	}
	s := &CheckService{
		config: opts.Config,
		logger: opts.Logger,
		checks: opts.Checks,
		open:   opts.Opener,
		newID:  opts.NewID,
		clock:  opts.Clock,
		classifier: reach.ReferentSlot{
			DeclaringType: opts.Config.Scan.ReferenceClass,
			Name:          opts.Config.Scan.ReferentField,
		},
	}
	if s.logger == nil {
		s.logger = &utils.NullLogger{}
	}
	if s.open == nil {
		s.open = s.openFromStorage
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.clock == nil {
		s.clock = utils.NewRealClock()
	}
	return s, nil
}

func (s *CheckService) openFromStorage(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	store, key, err := storage.Resolve(&s.config.Storage, ref)
	if err != nil {
		return nil, "", err
	}
	return StorageOpener(store)(ctx, key)
}

// StorageOpener opens dump references as keys of store.
func StorageOpener(store storage.Storage) DumpOpener {
	return func(ctx context.Context, key string) (io.ReadCloser, string, error) {
		rc, err := store.Open(ctx, key)
		if err != nil {
			return nil, "", err
		}
		return rc, store.URL(key), nil
	}
}

// Run executes req and returns its report. A violated expectation is not an
// error; callers check Report.Passed.
func (s *CheckService) Run(ctx context.Context, req *model.CheckRequest) (*model.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid check request", err)
	}
	if req.Record && s.checks == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "recording checks requires database.enabled")
	}

	start := s.clock.Now()
	report := model.NewReport(s.newID(), req, start)
	timer := utils.NewTimer("Check "+report.CheckID, utils.WithLogger(s.logger), utils.WithClock(s.clock))
	log := s.logger.WithFields(map[string]interface{}{"check": report.CheckID, "class": req.TargetClass})

	snap, err := s.loadDump(ctx, timer, req.Dump, report)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded %s: %d classes, %d objects", report.Dump.Location, report.Dump.Classes, report.Dump.Objects)
	if _, ok := snap.ClassByName(req.TargetClass); !ok {
		log.Warn("Class %s does not occur in the dump", req.TargetClass)
	}

	roots, err := s.selectRoots(snap, req)
	if err != nil {
		return nil, err
	}

	pt := timer.Start("scan")
	scanner := reach.NewScanner[heapdump.ObjectID, heapdump.ObjectID](
		heapdump.NewHeapIntrospector(snap), s.classifier, &reach.ScanOptions{Logger: s.logger})
	pred := heapdump.InstanceOfClass(snap, req.TargetClass)
	pool := parallel.DefaultPoolConfig().WithWorkers(s.config.Scan.Workers)
	results, err := parallel.Map(ctx, roots, pool, func(ctx context.Context, root heapdump.ObjectID) (model.RootResult, error) {
		return s.scanRoot(ctx, scanner, pred, snap, root)
	})
	pt.Stop()
	if err != nil {
		return nil, err
	}
	for _, rr := range results {
		report.AddRoot(rr)
	}

	report.Finalize()

	if req.Record {
		if err := s.record(ctx, timer, report); err != nil {
			return nil, err
		}
	}

	for _, p := range timer.Phases() {
		report.Phases = append(report.Phases, model.PhaseTiming{Name: p.Name, DurationMs: millis(p.Duration)})
	}
	report.DurationMs = millis(s.clock.Since(start))
	timer.PrintSummary()

	log.Info("Check finished: reachable=%t verdict=%s roots=%d", report.Reachable, report.Verdict, len(report.Roots))
	return report, nil
}

func (s *CheckService) loadDump(ctx context.Context, timer *utils.Timer, ref string, report *model.Report) (snap *heapdump.Snapshot, err error) {
	ctx, span := telemetry.StartSpan(ctx, "load_dump", attribute.String("dump", ref))
	defer func() { telemetry.EndSpan(span, err) }()
	defer timer.Start("load_dump").Stop()

	rc, location, err := s.open(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "heap dump not found", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to open heap dump", err)
	}
	defer rc.Close()

	dr, ctype, err := compression.NewReader(rc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to decompress heap dump", err)
	}
	defer dr.Close()
	if ctype != compression.TypeNone {
		s.logger.Debug("Decompressing %s heap dump %s", ctype, location)
	}

	snap, err = heapdump.Load(ctx, dr, &heapdump.LoadOptions{Logger: s.logger})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to load heap dump", err)
	}

	report.Dump.Location = location
	report.Dump.Compression = ctype.String()
	report.Dump.Format = snap.Header.Format
	report.Dump.IDSize = snap.IDSize()
	report.Dump.Created = snap.Header.Timestamp
	report.Dump.Classes = snap.NumClasses()
	report.Dump.Objects = snap.NumObjects()
	return snap, nil
}

// selectRoots returns the explicit roots followed by the instances of
// req.RootClass, deduplicated and in ascending ID order within each group.
func (s *CheckService) selectRoots(snap *heapdump.Snapshot, req *model.CheckRequest) ([]heapdump.ObjectID, error) {
	seen := make(map[heapdump.ObjectID]bool)
	var roots []heapdump.ObjectID

	explicit := make([]heapdump.ObjectID, 0, len(req.Roots))
	for _, r := range req.Roots {
		id := heapdump.ObjectID(r)
		if !snap.Contains(id) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "root object %#x not found in heap dump", r)
		}
		explicit = append(explicit, id)
	}
	sort.Slice(explicit, func(i, j int) bool { return explicit[i] < explicit[j] })
	for _, id := range explicit {
		if !seen[id] {
			seen[id] = true
			roots = append(roots, id)
		}
	}

	if req.RootClass != "" {
		instances := snap.InstancesOf(req.RootClass, true)
		if len(instances) == 0 {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "no instances of root class %s in heap dump", req.RootClass)
		}
		limit := req.MaxRoots
		if limit == 0 {
			limit = s.config.Scan.MaxRoots
		}
		if limit > 0 && len(instances) > limit {
			s.logger.Warn("Scanning %d of %d instances of %s", limit, len(instances), req.RootClass)
			instances = instances[:limit]
		}
		for _, id := range instances {
			if !seen[id] {
				seen[id] = true
				roots = append(roots, id)
			}
		}
	}
	return roots, nil
}

func (s *CheckService) scanRoot(
	ctx context.Context,
	scanner *reach.Scanner[heapdump.ObjectID, heapdump.ObjectID],
	pred reach.Predicate[heapdump.ObjectID],
	snap *heapdump.Snapshot,
	root heapdump.ObjectID,
) (rr model.RootResult, err error) {
	if err := ctx.Err(); err != nil {
		return rr, err
	}
	_, span := telemetry.StartSpan(ctx, "scan_root", attribute.String("root", fmt.Sprintf("%#x", uint64(root))))
	defer func() { telemetry.EndSpan(span, err) }()

	found, stats, err := scanner.Scan(pred, root)
	if err != nil {
		return rr, apperrors.Wrap(apperrors.CodeScanFailure, "reachability scan failed", err)
	}
	span.SetAttributes(
		attribute.Bool("reachable", found),
		attribute.Int("visited", stats.Visited),
	)
	return model.RootResult{
		Root:      fmt.Sprintf("%#x", uint64(root)),
		RootClass: snap.ClassName(root),
		Reachable: found,
		Visited:   stats.Visited,
		Tested:    stats.Tested,
		Refused:   stats.Refused,
	}, nil
}

func (s *CheckService) record(ctx context.Context, timer *utils.Timer, report *model.Report) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "record_check", attribute.String("check_id", report.CheckID))
	defer func() { telemetry.EndSpan(span, err) }()
	defer timer.Start("record_check").Stop()

	if err := s.checks.Save(ctx, report); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to record check", err)
	}
	return nil
}

// History lists recorded checks, newest first.
func (s *CheckService) History(ctx context.Context, limit int) ([]*model.Report, error) {
	if s.checks == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "check history requires database.enabled")
	}
	reports, err := s.checks.List(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list checks", err)
	}
	return reports, nil
}

// Lookup returns a recorded check.
func (s *CheckService) Lookup(ctx context.Context, checkID string) (*model.Report, error) {
	if s.checks == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "check history requires database.enabled")
	}
	report, err := s.checks.Get(ctx, checkID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "check not found", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get check", err)
	}
	return report, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
