package reach

import (
	"errors"
	"fmt"

	"github.com/reachscan/pkg/utils"
)

// Predicate tests a candidate object reached during a scan.
type Predicate[O any] func(o O) bool

// ScanOptions configures a Scanner.
type ScanOptions struct {
	// Logger receives per-scan debug statistics. Defaults to a NullLogger.
	Logger utils.Logger
}

// ScanStats summarizes a finished scan.
type ScanStats struct {
	Visited int
	Tested  int
	Refused int
}

// Scanner performs breadth-first reachability scans over the graph exposed by
// its Introspector.
type Scanner[O any, K comparable] struct {
	introspector Introspector[O, K]
	classifier   ReferenceClassifier
	logger       utils.Logger
}

// NewScanner creates a Scanner. A nil classifier treats every slot as owning.
func NewScanner[O any, K comparable](introspector Introspector[O, K], classifier ReferenceClassifier, opts *ScanOptions) *Scanner[O, K] {
	if classifier == nil {
		classifier = StrongOnly
	}
	s := &Scanner[O, K]{
		introspector: introspector,
		classifier:   classifier,
		logger:       &utils.NullLogger{},
	}
	if opts != nil && opts.Logger != nil {
		s.logger = opts.Logger
	}
	return s
}

// scan holds the state of a single IsReachable call.
type scan[O any, K comparable] struct {
	visited  map[K]struct{}
	frontier []O
	pred     Predicate[O]
	stats    ScanStats
}

// IsReachable reports whether an object satisfying pred is strongly reachable
// from root through at least one owning edge. The root itself is not tested.
// A nil root yields false.
func (s *Scanner[O, K]) IsReachable(pred Predicate[O], root O) (bool, error) {
	found, _, err := s.Scan(pred, root)
	return found, err
}

// Scan is IsReachable that also returns statistics about the walk.
func (s *Scanner[O, K]) Scan(pred Predicate[O], root O) (bool, ScanStats, error) {
	in := s.introspector
	if in.IsNil(root) {
		return false, ScanStats{}, nil
	}

	st := &scan[O, K]{
		visited:  map[K]struct{}{in.Identity(root): {}},
		frontier: []O{root},
		pred:     pred,
	}

	for len(st.frontier) > 0 {
		current := st.frontier[0]
		var zero O
		st.frontier[0] = zero
		st.frontier = st.frontier[1:]

		var (
			found bool
			err   error
		)
		switch in.Shape(current) {
		case ShapeIndexed:
			found, err = s.expandIndexed(st, current)
		case ShapeComposite:
			found, err = s.expandComposite(st, current)
		}
		if err != nil {
			return false, s.finish(st), err
		}
		if found {
			return true, s.finish(st), nil
		}
	}
	return false, s.finish(st), nil
}

func (s *Scanner[O, K]) finish(st *scan[O, K]) ScanStats {
	st.stats.Visited = len(st.visited)
	s.logger.Debug("Reachability scan visited %d objects, tested %d, refused %d slots",
		st.stats.Visited, st.stats.Tested, st.stats.Refused)
	return st.stats
}

func (s *Scanner[O, K]) expandIndexed(st *scan[O, K], current O) (bool, error) {
	in := s.introspector
	if in.ScalarElements(current) {
		return false, nil
	}
	elems, err := in.Elements(current)
	if err != nil {
		if errors.Is(err, ErrAccessRefused) {
			st.stats.Refused++
			return false, nil
		}
		return false, &ScanFailure{Object: in.Describe(current), Slot: "[]", Err: err}
	}
	for i, elem := range elems {
		found, err := s.offer(st, current, elem, fmt.Sprintf("[%d]", i))
		if found || err != nil {
			return found, err
		}
	}
	return false, nil
}

func (s *Scanner[O, K]) expandComposite(st *scan[O, K], current O) (bool, error) {
	in := s.introspector
	for _, slot := range in.Slots(current) {
		if slot.Scalar || s.classifier.NonOwning(slot) {
			continue
		}
		next, err := in.Read(current, slot)
		if err != nil {
			if errors.Is(err, ErrAccessRefused) {
				st.stats.Refused++
				continue
			}
			return false, &ScanFailure{Object: in.Describe(current), Slot: slot.Name, Err: err}
		}
		found, err := s.offer(st, current, next, slot.Name)
		if found || err != nil {
			return found, err
		}
	}
	return false, nil
}

// offer tests a neighbor and enqueues it if it has not been seen yet.
func (s *Scanner[O, K]) offer(st *scan[O, K], current, next O, via string) (bool, error) {
	in := s.introspector
	if in.IsNil(next) {
		return false, nil
	}
	st.stats.Tested++
	matched, err := evaluate(st.pred, next)
	if err != nil {
		return false, &ScanFailure{Object: in.Describe(current), Slot: via, Err: err}
	}
	if matched {
		return true, nil
	}
	key := in.Identity(next)
	if _, seen := st.visited[key]; !seen {
		st.visited[key] = struct{}{}
		st.frontier = append(st.frontier, next)
	}
	return false, nil
}

func evaluate[O any](pred Predicate[O], o O) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("predicate failed: %w", e)
				return
			}
			err = fmt.Errorf("predicate failed: %v", r)
		}
	}()
	return pred(o), nil
}
