package backend

import (
	"database/sql"
	"encoding/json"
)

// Rows lazily decodes a streamed select result one JSON document at a
// time, so a caller never materializes an entire table in memory. Every
// generated select yields a single "data" column, which is all Decode
// reads.
type Rows struct {
	rows *sql.Rows
}

// Next advances to the next row. Call Decode after a true Next.
func (r *Rows) Next() bool { return r.rows.Next() }

// Decode reads the current row's document.
func (r *Rows) Decode() (any, error) {
	var cell any
	if err := r.rows.Scan(&cell); err != nil {
		return nil, err
	}
	return decodeCell(cell), nil
}

// Err reports any error encountered during iteration.
func (r *Rows) Err() error { return r.rows.Err() }

// Close releases the underlying connection.
func (r *Rows) Close() error { return r.rows.Close() }

// decodeCell normalizes a scanned "data" column value into a plain Go
// value (map/slice/string/float64/bool/nil) regardless of whether the
// driver handed back a native numeric/text type or raw JSON text/bytes.
// Both backends can return either shape depending on the select
// expression: a whole-row read returns serialized JSON, a json_extract /
// #>> projection can return a bare scalar in the column's native type.
func decodeCell(cell any) any {
	switch v := cell.(type) {
	case nil:
		return nil
	case []byte:
		var decoded any
		if json.Unmarshal(v, &decoded) == nil {
			return decoded
		}
		return string(v)
	case string:
		var decoded any
		if json.Unmarshal([]byte(v), &decoded) == nil {
			return decoded
		}
		return v
	default:
		return v
	}
}
