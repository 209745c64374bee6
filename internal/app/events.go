package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cli-admin/internal/explore"
)

// eventSink receives view callbacks. Every event is logged at debug level
// and noted for the status bar.
type eventSink struct {
	logger *zap.Logger
	notes  []string
}

// options wires a view's callbacks to the sink.
func (s *eventSink) options(dataset string) []explore.ViewOption {
	log := s.logger.With(zap.String("dataset", dataset))
	return []explore.ViewOption{
		explore.OnSortChange(func(d *explore.SortDescriptor) {
			log.Debug("sort changed", zap.Stringer("sort", d))
			if d == nil {
				s.add("Sort cleared")
				return
			}
			s.add(fmt.Sprintf("Sorted by %s %s", d.Key, d.Direction))
		}),
		explore.OnPageChange(func(page int) {
			log.Debug("page changed", zap.Int("page", page))
			s.add(fmt.Sprintf("Page %d", page))
		}),
		explore.OnPageSizeChange(func(size int) {
			log.Debug("page size changed", zap.Int("page_size", size))
			s.add(fmt.Sprintf("%d rows per page", size))
		}),
		explore.OnSelectionChange(func(ids []explore.RowID) {
			log.Debug("selection changed", zap.Int("selected", len(ids)))
			s.add(fmt.Sprintf("%d selected", len(ids)))
		}),
	}
}

func (s *eventSink) add(note string) {
	s.notes = append(s.notes, note)
}

// drain returns the notes since the last drain.
func (s *eventSink) drain() string {
	n := strings.Join(s.notes, " · ")
	s.notes = s.notes[:0]
	return n
}
