// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descriptor

import (
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Wrap converts a FileDescriptorProto, as delivered by protoc in a
// CodeGeneratorRequest, into the generator's descriptor model and
// resolves it. Proto3 optional fields arrive as members of a synthetic
// oneof; Wrap collapses them back into plain optional fields. Map
// fields arrive as repeated synthetic *Entry messages; Wrap folds the
// entry's key and value fields into the map field and drops the entry
// type.
func Wrap(fd *descriptorpb.FileDescriptorProto) (*File, error) {
	f := &File{
		Name:        fd.GetName(),
		Package:     fd.GetPackage(),
		RubyPackage: fd.GetOptions().GetRubyPackage(),
	}
	for _, e := range fd.GetEnumType() {
		f.Enums = append(f.Enums, wrapEnum(e))
	}
	for _, m := range fd.GetMessageType() {
		msg, err := wrapMessage(m)
		if err != nil {
			return nil, errors.Wrapf(err, "wrapping %s", fd.GetName())
		}
		f.Messages = append(f.Messages, msg)
	}
	if err := f.Resolve(); err != nil {
		return nil, err
	}
	return f, nil
}

func wrapEnum(ed *descriptorpb.EnumDescriptorProto) *Enum {
	e := &Enum{Name: ed.GetName()}
	for _, v := range ed.GetValue() {
		e.Values = append(e.Values, EnumValue{Name: v.GetName(), Number: v.GetNumber()})
	}
	return e
}

func wrapMessage(md *descriptorpb.DescriptorProto) (*Message, error) {
	m := &Message{Name: md.GetName()}

	// Map entry types are folded into their map field below rather
	// than generated as messages of their own.
	entries := make(map[string]*descriptorpb.DescriptorProto)
	for _, nested := range md.GetNestedType() {
		if nested.GetOptions().GetMapEntry() {
			entries[nested.GetName()] = nested
			continue
		}
		sub, err := wrapMessage(nested)
		if err != nil {
			return nil, err
		}
		m.Messages = append(m.Messages, sub)
	}
	for _, e := range md.GetEnumType() {
		m.Enums = append(m.Enums, wrapEnum(e))
	}

	// Real oneofs keep their declaration; synthetic ones (proto3
	// optional) are dropped and their lone member becomes optional.
	oneofs := make([]*Oneof, len(md.GetOneofDecl()))
	for i, od := range md.GetOneofDecl() {
		oneofs[i] = &Oneof{Name: od.GetName()}
	}
	synthetic := make([]bool, len(oneofs))

	for _, fd := range md.GetField() {
		field, err := wrapField(fd, entries)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s.%s", md.GetName(), fd.GetName())
		}
		if fd.OneofIndex != nil {
			i := int(fd.GetOneofIndex())
			if fd.GetProto3Optional() {
				synthetic[i] = true
				field.Label = LabelOptional
			} else {
				field.Oneof = oneofs[i]
				oneofs[i].Fields = append(oneofs[i].Fields, field)
			}
		}
		m.Fields = append(m.Fields, field)
	}
	for i, o := range oneofs {
		if !synthetic[i] {
			m.Oneofs = append(m.Oneofs, o)
		}
	}
	return m, nil
}

func wrapField(fd *descriptorpb.FieldDescriptorProto, entries map[string]*descriptorpb.DescriptorProto) (*Field, error) {
	f := &Field{
		Name:     fd.GetName(),
		Number:   fd.GetNumber(),
		Type:     Type(fd.GetType()),
		TypeName: strings.TrimPrefix(fd.GetTypeName(), "."),
	}
	switch fd.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		f.Label = LabelRepeated
	case descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL:
		// In proto3 every singular field carries LABEL_OPTIONAL;
		// explicit presence is signalled separately, and is applied
		// by the caller when it unwinds the synthetic oneof.
		f.Label = LabelRequired
	default:
		f.Label = LabelRequired
	}

	if f.Type == TypeMessage {
		if entry, ok := entries[localName(f.TypeName)]; ok {
			key, err := wrapField(entry.GetField()[0], nil)
			if err != nil {
				return nil, err
			}
			value, err := wrapField(entry.GetField()[1], nil)
			if err != nil {
				return nil, err
			}
			key.Label, value.Label = LabelRequired, LabelRequired
			f.IsMap = true
			f.Key, f.Value = key, value
			f.Label = LabelRepeated
			return f, nil
		}
	}

	if fd.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED {
		f.Packed = packed(fd)
	}
	switch f.Type {
	case TypeDouble, TypeFloat, TypeInt64, TypeUint64, TypeInt32,
		TypeFixed64, TypeFixed32, TypeBool, TypeString, TypeMessage,
		TypeBytes, TypeUint32, TypeEnum, TypeSfixed32, TypeSfixed64,
		TypeSint32, TypeSint64:
	default:
		return nil, errors.Errorf("unsupported field type %v", fd.GetType())
	}
	return f, nil
}

// packed reports whether a repeated field is packed on the wire. In
// proto3, repeated scalars are packed unless annotated [packed=false].
func packed(fd *descriptorpb.FieldDescriptorProto) bool {
	switch Type(fd.GetType()) {
	case TypeString, TypeBytes, TypeMessage:
		return false
	}
	if opts := fd.GetOptions(); opts != nil && opts.Packed != nil {
		return opts.GetPacked()
	}
	return true
}
