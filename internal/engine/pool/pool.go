// Package pool implements the per-venue membership set of active order ids.
// It is an array-backed set with a companion id→position map, giving O(1)
// insert and O(1) removal via swap-and-pop, plus the round-robin processing
// cursor the batch processor resumes from on each price update.
package pool

import (
	"github.com/google/uuid"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

// Index is not safe for concurrent use; the engine serializes access.
type Index struct {
	ids      []uuid.UUID
	pos      map[uuid.UUID]int
	cursor   int
	capacity int
}

// NewIndex creates an index that rejects inserts beyond capacity.
// capacity <= 0 means unbounded.
func NewIndex(capacity int) *Index {
	return &Index{
		pos:      make(map[uuid.UUID]int),
		capacity: capacity,
	}
}

// Len returns the number of member ids.
func (ix *Index) Len() int { return len(ix.ids) }

// Contains reports membership of id.
func (ix *Index) Contains(id uuid.UUID) bool {
	_, ok := ix.pos[id]
	return ok
}

// At returns the id at position i in the current ordering.
func (ix *Index) At(i int) uuid.UUID { return ix.ids[i] }

// Add appends id. Adding an existing member is a no-op.
func (ix *Index) Add(id uuid.UUID) error {
	if _, ok := ix.pos[id]; ok {
		return nil
	}
	if ix.capacity > 0 && len(ix.ids) >= ix.capacity {
		return model.ErrPoolAtCapacity
	}
	ix.pos[id] = len(ix.ids)
	ix.ids = append(ix.ids, id)
	return nil
}

// Remove deletes id by swapping the tail element into its slot and
// truncating. Returns false if id is not a member.
func (ix *Index) Remove(id uuid.UUID) bool {
	i, ok := ix.pos[id]
	if !ok {
		return false
	}
	last := len(ix.ids) - 1
	if i != last {
		moved := ix.ids[last]
		ix.ids[i] = moved
		ix.pos[moved] = i
	}
	ix.ids = ix.ids[:last]
	delete(ix.pos, id)
	return true
}

// Cursor returns the processing cursor normalized to the current length.
// With an empty index the cursor is 0.
func (ix *Index) Cursor() int {
	if len(ix.ids) == 0 {
		return 0
	}
	return ix.cursor % len(ix.ids)
}

// SetCursor stores the position the next batch pass resumes from.
func (ix *Index) SetCursor(c int) {
	if n := len(ix.ids); n > 0 {
		c %= n
	} else {
		c = 0
	}
	ix.cursor = c
}
