package mapping

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Table is the record table of one kind, keyed by identifier.
type Table[T any] struct {
	rows map[int]*T
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{rows: make(map[int]*T)}
}

// Get returns the record for id.
func (t *Table[T]) Get(id int) (*T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

// Has reports whether id is present.
func (t *Table[T]) Has(id int) bool {
	_, ok := t.rows[id]
	return ok
}

// Put inserts or replaces the record for id.
func (t *Table[T]) Put(id int, row *T) {
	t.rows[id] = row
}

// Delete removes the record for id.
func (t *Table[T]) Delete(id int) {
	delete(t.rows, id)
}

// IDs returns every identifier in ascending order.
func (t *Table[T]) IDs() []int {
	ids := make([]int, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of records.
func (t *Table[T]) Len() int {
	return len(t.rows)
}

// MarshalYAML writes the table as a plain id -> record mapping.
func (t *Table[T]) MarshalYAML() (any, error) {
	return t.rows, nil
}

// UnmarshalYAML reads a plain id -> record mapping. Empty records are rejected.
func (t *Table[T]) UnmarshalYAML(node *yaml.Node) error {
	rows := make(map[int]*T)
	if err := node.Decode(&rows); err != nil {
		return err
	}
	for id, row := range rows {
		if id <= 0 {
			return fmt.Errorf("invalid identifier %d", id)
		}
		if row == nil {
			return fmt.Errorf("empty record for identifier %d", id)
		}
	}
	t.rows = rows
	return nil
}
