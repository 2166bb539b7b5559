package orm

import (
	"encoding/json"
)

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// Codec encodes entities into row payloads and back. The codec's output is
// also what dirty detection compares, so it must be deterministic for equal
// values.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// --------------------------------------------------------------------------
// Mapper
// --------------------------------------------------------------------------

// Mapper describes how one entity type maps onto a table: where its rows
// live, how to read and assign its primary key, how to encode it, and how to
// wire its relations after materialization.
//
// A Mapper is immutable after creation and safe to share between sessions.
type Mapper[T any] struct {
	table string
	pk    func(*T) uint64
	setPK func(*T, uint64)
	wire  func(s *Session, entity *T)
	codec Codec
}

// MapperOption customizes a Mapper
type MapperOption[T any] func(*Mapper[T])

// WithAssignedPK installs a setter used to assign a generated primary key to
// entities added with PK 0.
func WithAssignedPK[T any](setPK func(*T, uint64)) MapperOption[T] {
	return func(m *Mapper[T]) { m.setPK = setPK }
}

// WithRelations installs a wiring function the session calls after
// materializing an entity. It is the place to create the entity's Collection
// handles.
func WithRelations[T any](wire func(s *Session, entity *T)) MapperOption[T] {
	return func(m *Mapper[T]) { m.wire = wire }
}

// WithCodec replaces the default JSON payload codec.
func WithCodec[T any](codec Codec) MapperOption[T] {
	return func(m *Mapper[T]) { m.codec = codec }
}

// NewMapper creates a mapper for entity type T. pk extracts the primary key
// from an entity; it must return a stable value for tracked entities.
func NewMapper[T any](table string, pk func(*T) uint64, opts ...MapperOption[T]) *Mapper[T] {
	m := &Mapper[T]{
		table: table,
		pk:    pk,
		codec: jsonCodec{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the table rows of T live in
func (m *Mapper[T]) Table() string {
	return m.table
}

func (m *Mapper[T]) encode(entity *T) ([]byte, error) {
	return m.codec.Marshal(entity)
}

func (m *Mapper[T]) decode(data []byte, entity *T) error {
	return m.codec.Unmarshal(data, entity)
}
