package pipeline

import (
	"sync/atomic"

	"github.com/On-Jun9/phockup/pkg/types"
)

// Stats accumulates run counters. It is safe for concurrent use by workers.
type Stats struct {
	processed  atomic.Int64
	copied     atomic.Int64
	moved      atomic.Int64
	linked     atomic.Int64
	duplicates atomic.Int64
	deleted    atomic.Int64
	unknown    atomic.Int64
	filtered   atomic.Int64
	failed     atomic.Int64
}

func (s *Stats) Record(o types.FileOutcome) {
	s.processed.Add(1)

	if o.UnknownDate {
		s.unknown.Add(1)
	}

	switch o.Outcome {
	case types.OutcomeCopied:
		s.copied.Add(1)
	case types.OutcomeMoved:
		s.moved.Add(1)
	case types.OutcomeLinked:
		s.linked.Add(1)
	case types.OutcomeDuplicate:
		s.duplicates.Add(1)
	case types.OutcomeDeleted:
		s.duplicates.Add(1)
		s.deleted.Add(1)
	case types.OutcomeFiltered:
		s.filtered.Add(1)
	case types.OutcomeFailed:
		s.failed.Add(1)
	}
}

func (s *Stats) Processed() int64 {
	return s.processed.Load()
}

func (s *Stats) Summary() types.RunSummary {
	return types.RunSummary{
		Processed:  s.processed.Load(),
		Copied:     s.copied.Load(),
		Moved:      s.moved.Load(),
		Linked:     s.linked.Load(),
		Duplicates: s.duplicates.Load(),
		Deleted:    s.deleted.Load(),
		Unknown:    s.unknown.Load(),
		Filtered:   s.filtered.Load(),
		Failed:     s.failed.Load(),
	}
}
