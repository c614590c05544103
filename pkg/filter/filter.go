// ABOUTME: Effect filter interface and the source attachment table
// ABOUTME: Tracks which filter each source uses so rebinding and filter teardown stay consistent
package filter

import (
	"reflect"
	"sync"

	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
	"github.com/google/uuid"
)

// Filter is an effect that can be bound to a source's device handle. The table tells
// filters apart by identity, so implementations should be pointer types; a filter of a
// non-comparable type never matches Release or Sources.
type Filter interface {
	Bind(h device.Handle)
	Unbind(h device.Handle)
}

type attachment struct {
	handle device.Handle
	filter Filter
}

// Default is the table used when a source or filter is created without one
var Default = NewTable()

// Table records which filter is attached to which source
type Table struct {
	mu   sync.Mutex
	rows map[uuid.UUID]attachment
}

// NewTable creates an empty attachment table
func NewTable() *Table {
	return &Table{rows: make(map[uuid.UUID]attachment)}
}

// Attach makes f the filter of source id. The previous filter is unbound before f is
// bound. A nil f clears the attachment.
func (t *Table) Attach(id uuid.UUID, h device.Handle, f Filter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.rows[id]; ok {
		old.filter.Unbind(old.handle)
		delete(t.rows, id)
	}
	if f == nil {
		return
	}
	f.Bind(h)
	t.rows[id] = attachment{handle: h, filter: f}
}

// Detach unbinds and forgets the filter of source id
func (t *Table) Detach(id uuid.UUID) {
	t.Attach(id, 0, nil)
}

// Filter returns the filter attached to source id, nil if none
func (t *Table) Filter(id uuid.UUID) Filter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row, ok := t.rows[id]; ok {
		return row.filter
	}
	return nil
}

// Release unbinds f from every source using it and removes those rows
func (t *Table) Release(f Filter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, row := range t.rows {
		if sameFilter(row.filter, f) {
			row.filter.Unbind(row.handle)
			delete(t.rows, id)
		}
	}
}

// Sources lists the ids of sources f is attached to
func (t *Table) Sources(f Filter) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []uuid.UUID
	for id, row := range t.rows {
		if sameFilter(row.filter, f) {
			ids = append(ids, id)
		}
	}
	return ids
}

// sameFilter compares two filters without panicking on non-comparable dynamic types
func sameFilter(a, b Filter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
