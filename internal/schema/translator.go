// Package schema translates between local records and remote table rows.
//
// A Translator is declared from (local field, remote column) pairs. Local
// field names are the record's JSON names; anything not declared, such as
// the synced flag, stays on the device.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Remote columns shared by every table.
const (
	IDColumn      = "id"
	OwnerColumn   = "user_id"
	CreatedColumn = "created_at"
	UpdatedColumn = "updated_at"
)

// Row is one remote row keyed by column name.
type Row map[string]any

// Field maps a local JSON field to a remote column.
type Field struct {
	Local  string
	Remote string
}

// F is shorthand for a Field.
func F(local, remote string) Field { return Field{Local: local, Remote: remote} }

// Same maps a field whose local and remote names match.
func Same(name string) Field { return Field{Local: name, Remote: name} }

// Translator converts T to and from Row.
type Translator[T any] struct {
	fields  []Field
	columns map[string]bool
}

// NewTranslator declares a translator from field pairs.
func NewTranslator[T any](fields ...Field) *Translator[T] {
	cols := make(map[string]bool, len(fields))
	for _, f := range fields {
		cols[f.Remote] = true
	}
	return &Translator[T]{fields: fields, columns: cols}
}

// Columns returns the declared remote columns in declaration order.
func (tr *Translator[T]) Columns() []string {
	out := make([]string, 0, len(tr.fields))
	seen := make(map[string]bool, len(tr.fields))
	for _, f := range tr.fields {
		if !seen[f.Remote] {
			seen[f.Remote] = true
			out = append(out, f.Remote)
		}
	}
	return out
}

// HasColumn reports whether column is declared.
func (tr *Translator[T]) HasColumn(column string) bool { return tr.columns[column] }

// ToRemote returns the row for v. Every declared column is present; absent
// values are nil.
func (tr *Translator[T]) ToRemote(v T) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("schema: encode %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var local map[string]any
	if err := dec.Decode(&local); err != nil {
		return nil, fmt.Errorf("schema: encode %T: %w", v, err)
	}

	row := make(Row, len(tr.fields))
	for _, f := range tr.fields {
		row[f.Remote] = local[f.Local]
	}
	return row, nil
}

// ToLocal decodes row into T. Unknown columns are ignored; time strings are
// parsed as RFC 3339.
func (tr *Translator[T]) ToLocal(row Row) (T, error) {
	var out T
	local := make(map[string]any, len(tr.fields))
	for _, f := range tr.fields {
		if v, ok := row[f.Remote]; ok && v != nil {
			local[f.Local] = v
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Squash:  true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, fmt.Errorf("schema: decoder: %w", err)
	}
	if err := dec.Decode(local); err != nil {
		return out, fmt.Errorf("schema: decode %T: %w", out, err)
	}
	return out, nil
}
