// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package descriptor holds the in-memory representation of a parsed
// .proto file as consumed by the Ruby code generator. The shapes here
// are deliberately small: the parser (protoc) has already validated the
// input, so this package only canonicalizes it into a form convenient
// for emission and computes the per-field state the emitters dispatch
// on (wire types, optional-field bit indices, enum markers).
package descriptor

import (
	"fmt"
)

// Wire types as they appear in the low three bits of a field tag.
const (
	WireVarint  = 0
	WireFixed64 = 1
	WireBytes   = 2
	WireFixed32 = 5
)

// Type identifies a field's proto type. The values match the
// FieldDescriptorProto.Type numbering so wrapped descriptors convert
// without a translation table.
type Type int

const (
	TypeDouble   Type = 1
	TypeFloat    Type = 2
	TypeInt64    Type = 3
	TypeUint64   Type = 4
	TypeInt32    Type = 5
	TypeFixed64  Type = 6
	TypeFixed32  Type = 7
	TypeBool     Type = 8
	TypeString   Type = 9
	TypeMessage  Type = 11
	TypeBytes    Type = 12
	TypeUint32   Type = 13
	TypeEnum     Type = 14
	TypeSfixed32 Type = 15
	TypeSfixed64 Type = 16
	TypeSint32   Type = 17
	TypeSint64   Type = 18
)

// Label is a field's cardinality. In proto3 terms, LabelRequired is a
// plain singular field (implicit presence), LabelOptional is a field
// declared with the optional keyword (explicit presence), and
// LabelRepeated covers repeated fields and maps.
type Label int

const (
	LabelRequired Label = 1
	LabelOptional Label = 2
	LabelRepeated Label = 3
)

// MaxOptionalFields is the number of explicit-presence fields a single
// message may declare. Presence is tracked in one integer bitmask in
// the generated class, so the limit is fixed at generation time.
const MaxOptionalFields = 62

// A File is one .proto compilation unit.
type File struct {
	Name        string // source file name, e.g. "acme/user.proto"
	Package     string // dotted proto package, e.g. "acme.v1"
	RubyPackage string // explicit namespace override, "::"-separated

	Enums    []*Enum
	Messages []*Message
}

// An Enum is a named set of integer constants. Top-level enums have a
// nil parent.
type Enum struct {
	Name   string
	Values []EnumValue

	parent *Message
}

// An EnumValue is a single named constant.
type EnumValue struct {
	Name   string
	Number int32
}

// A Message is a single message definition, possibly nested.
type Message struct {
	Name string

	Enums    []*Enum
	Messages []*Message

	// Fields holds every field of the message in descriptor order,
	// including oneof members and map fields.
	Fields []*Field
	Oneofs []*Oneof

	parent *Message

	// bitIndex maps an optional field's number to its dense index in
	// the presence bitmask. Populated by Resolve.
	bitIndex map[int32]uint
}

// A Oneof is a group of fields of which at most one is set.
type Oneof struct {
	Name   string
	Fields []*Field
}

// A Field is a single field of a message. Map fields carry synthesized
// Key and Value fields and have IsMap set.
type Field struct {
	Name     string
	Number   int32
	Type     Type
	TypeName string // qualified type name for message and enum fields
	Label    Label
	Packed   bool

	Oneof *Oneof // the containing group, if this is a oneof member

	IsMap bool
	Key   *Field
	Value *Field

	// enum reports whether the field's type resolves to an enum
	// visible at the field's scope. Set by Resolve, which also sets Type
	// to TypeEnum on a field that names an enum by bare name.
	enum bool
}

// Parent returns the containing message, or nil for a top-level enum.
func (e *Enum) Parent() *Message { return e.parent }

// Parent returns the containing message, or nil at top level.
func (m *Message) Parent() *Message { return m.parent }

// IsEnum reports whether the field stores an enum number.
func (f *Field) IsEnum() bool { return f.enum }

// Repeated reports whether the field holds an ordered sequence.
func (f *Field) Repeated() bool { return f.Label == LabelRepeated && !f.IsMap }

// Optional reports whether the field has explicit presence tracked in
// the message bitmask.
func (f *Field) Optional() bool { return f.Label == LabelOptional }

// WireType returns the wire type used for the field's records. Packed
// repeated scalars, strings, bytes, messages and maps are
// length-delimited; unpacked repeated scalars are tagged with the
// element's own wire type.
func (f *Field) WireType() int {
	if f.IsMap {
		return WireBytes
	}
	if f.Label == LabelRepeated && f.Packed {
		return WireBytes
	}
	return scalarWireType(f.Type)
}

func scalarWireType(t Type) int {
	switch t {
	case TypeBool, TypeInt32, TypeInt64, TypeUint32, TypeUint64,
		TypeSint32, TypeSint64, TypeEnum:
		return WireVarint
	case TypeFixed64, TypeSfixed64, TypeDouble:
		return WireFixed64
	case TypeFixed32, TypeSfixed32, TypeFloat:
		return WireFixed32
	case TypeString, TypeBytes, TypeMessage:
		return WireBytes
	}
	return WireVarint
}

// Tag returns the field's wire tag, (number << 3) | wire_type.
func (f *Field) Tag() uint64 {
	return uint64(f.Number)<<3 | uint64(f.WireType())
}

// BitIndex returns the field's index in the presence bitmask. It is
// only meaningful for optional fields of a resolved message.
func (m *Message) BitIndex(f *Field) uint {
	return m.bitIndex[f.Number]
}

// OptionalCount returns the number of explicit-presence fields.
func (m *Message) OptionalCount() int {
	return len(m.bitIndex)
}

// Resolve computes the derived state the emitters need: parent links,
// the optional-field bit LUT of every message, and the enum marker on
// fields whose type name resolves to an enum visible at their scope
// (a nested enum of the enclosing message or a top-level enum of the
// file). It must be called once before generation.
func (f *File) Resolve() error {
	for _, e := range f.Enums {
		e.parent = nil
	}
	for _, m := range f.Messages {
		if err := f.resolveMessage(m, nil); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) resolveMessage(m *Message, parent *Message) error {
	m.parent = parent
	for _, e := range m.Enums {
		e.parent = m
	}
	for _, nested := range m.Messages {
		if err := f.resolveMessage(nested, m); err != nil {
			return err
		}
	}

	m.bitIndex = make(map[int32]uint)
	for _, field := range m.Fields {
		if field.Optional() {
			if len(m.bitIndex) >= MaxOptionalFields {
				return &CapacityError{Message: m.Name, Count: countOptional(m)}
			}
			m.bitIndex[field.Number] = uint(len(m.bitIndex))
		}
		f.markEnum(m, field)
		if field.IsMap {
			f.markEnum(m, field.Key)
			f.markEnum(m, field.Value)
		}
	}
	return nil
}

func countOptional(m *Message) int {
	n := 0
	for _, f := range m.Fields {
		if f.Optional() {
			n++
		}
	}
	return n
}

// markEnum sets the field's enum marker. Wrapped descriptors already
// carry TypeEnum; descriptors built by hand may instead reference an
// enum by bare name, which is resolved against the visible scopes.
func (f *File) markEnum(m *Message, field *Field) {
	if field == nil {
		return
	}
	if field.Type == TypeEnum {
		field.enum = true
		return
	}
	if field.TypeName == "" {
		return
	}
	name := localName(field.TypeName)
	for _, e := range m.Enums {
		if e.Name == name {
			field.enum = true
			field.Type = TypeEnum
			return
		}
	}
	for _, e := range f.Enums {
		if e.Name == name {
			field.enum = true
			field.Type = TypeEnum
			return
		}
	}
}

// localName returns the last component of a dotted type name.
func localName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

// A CapacityError reports a message declaring more explicit-presence
// fields than the bitmask can track.
type CapacityError struct {
	Message string
	Count   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("message %s has %d optional fields; the presence bitmask tracks at most %d",
		e.Message, e.Count, MaxOptionalFields)
}
