package memtable

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"polystore/fault"
)

// Entry records one committed change to a table, for later replay or
// auditing.
type Entry struct {
	ID     string    `json:"id"`
	Op     string    `json:"op"`
	Table  string    `json:"table"`
	RowID  int64     `json:"row_id"`
	Values []any     `json:"values,omitempty"`
	At     time.Time `json:"at"`
}

// Log is an append sink for committed changes. Implementations must be
// safe for concurrent use on their own; the synchronized facade does not
// lock the sink.
type Log interface {
	Append(e Entry) error
}

// JSONLog appends entries as JSON lines to a writer.
type JSONLog struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLog creates a JSON-lines log over w.
func NewJSONLog(w io.Writer) *JSONLog {
	return &JSONLog{enc: json.NewEncoder(w)}
}

// Append writes one entry as a single JSON line.
func (l *JSONLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(e); err != nil {
		return fault.Wrap(fault.Data, "memtable.JSONLog", err)
	}
	return nil
}

func newEntry(op, table string, rowID int64, values []any) Entry {
	return Entry{
		ID:     uuid.New().String(),
		Op:     op,
		Table:  table,
		RowID:  rowID,
		Values: values,
		At:     time.Now().UTC(),
	}
}
