// Package model defines the records kept by gatelog and the shapes the sync
// engine reports back to callers.
package model

import "time"

// Meta is the bookkeeping every list record carries. It is embedded in each
// entity so the sync engine can treat records uniformly.
type Meta struct {
	ID        string    `json:"id"`
	Synced    bool      `json:"synced"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Base returns the record's bookkeeping fields.
func (m *Meta) Base() *Meta { return m }

// Record constrains a pointer to an entity type that embeds Meta.
// Generic store and adapter code is written against it:
//
//	func list[T any, P model.Record[T]](...)
type Record[T any] interface {
	*T
	Base() *Meta
}

// MetaOf returns a copy of the bookkeeping fields of v.
func MetaOf[T any, P Record[T]](v T) Meta {
	return *P(&v).Base()
}

// Tombstone marks a record deleted locally whose remote deletion has not
// been confirmed yet.
type Tombstone struct {
	ID        string    `json:"id"`
	Table     string    `json:"table"`
	Timestamp time.Time `json:"timestamp"`
}
