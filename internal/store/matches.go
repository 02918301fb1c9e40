package store

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/roach88/narrow/internal/model"
)

// matchArray scans a two-dimensional integer array of [offset, length]
// pairs, as produced by the match position columns. NULL scans to nil.
type matchArray struct {
	ranges []model.MatchRange
}

func (m *matchArray) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case nil:
		m.ranges = nil
		return nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return fmt.Errorf("match array: cannot scan %T", src)
	}

	// pq only scans one-dimensional arrays; the pairs are rebuilt below.
	flat := "{" + strings.NewReplacer("{", "", "}", "").Replace(text) + "}"
	var ints pq.Int64Array
	if err := ints.Scan(flat); err != nil {
		return fmt.Errorf("match array: %w", err)
	}
	if len(ints)%2 != 0 {
		return fmt.Errorf("match array: odd element count %d", len(ints))
	}
	m.ranges = make([]model.MatchRange, 0, len(ints)/2)
	for i := 0; i < len(ints); i += 2 {
		m.ranges = append(m.ranges, model.MatchRange{int(ints[i]), int(ints[i+1])})
	}
	return nil
}
