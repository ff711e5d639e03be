// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

import (
	"github.com/lumaly/ruby-protobuf/internal/descriptor"
)

// The encoder fragments. Fields are written in descriptor order into a
// growable binary string. A field whose value equals its proto3
// default contributes nothing, not even a tag. Submessages and packed
// records reserve a single length byte and back-patch it after the
// body is written, splicing in extra bytes only when the length varint
// needs more than one.

// encodeTag appends the field's tag bytes. Tags for field numbers 15
// and below are a single byte.
func (g *Generator) encodeTag(f *descriptor.Field) {
	for _, b := range tagVarint(f.Tag()) {
		g.p("buff << ", hexByte(b))
	}
}

// encodeVarintLoop emits the unsigned base-128 write of src. src must
// be a scratch local; the loop destroys it.
func (g *Generator) encodeVarintLoop(src string) {
	g.p("while ", src, " >= 0x80")
	g.in()
	g.p("buff << ((", src, " & 0x7F) | 0x80)")
	g.p(src, " >>= 7")
	g.out()
	g.p("end")
	g.p("buff << ", src)
}

// encodeScalarValue appends the value bytes (no tag) for one scalar of
// the field's type held in the scratch local src.
func (g *Generator) encodeScalarValue(f *descriptor.Field, src string) error {
	switch f.Type {
	case descriptor.TypeUint32, descriptor.TypeUint64:
		g.encodeVarintLoop(src)
	case descriptor.TypeInt32, descriptor.TypeInt64, descriptor.TypeEnum:
		// Negative values go out as the ten-byte unsigned
		// reinterpretation of their 64-bit two's complement.
		g.p(src, " += 0x10000000000000000 if ", src, " < 0")
		g.encodeVarintLoop(src)
	case descriptor.TypeSint32:
		g.p(src, " = (", src, " << 1) ^ (", src, " >> 31)")
		g.encodeVarintLoop(src)
	case descriptor.TypeSint64:
		g.p(src, " = (", src, " << 1) ^ (", src, " >> 63)")
		g.encodeVarintLoop(src)
	case descriptor.TypeBool:
		g.p("buff << (", src, " == true ? 1 : 0)")
	case descriptor.TypeFixed32, descriptor.TypeSfixed32, descriptor.TypeFloat,
		descriptor.TypeFixed64, descriptor.TypeSfixed64, descriptor.TypeDouble:
		format, _ := fixedFormat(f.Type)
		g.p("buff << [", src, `].pack("`, format, `")`)
	case descriptor.TypeString:
		g.p("str_len = ", src, ".bytesize")
		g.encodeVarintLoop("str_len")
		g.p("buff << (", src, ".ascii_only? ? ", src, " : ", src, ".b)")
	case descriptor.TypeBytes:
		g.p("str_len = ", src, ".bytesize")
		g.encodeVarintLoop("str_len")
		g.p("buff << ", src)
	default:
		return &UnknownTypeError{Field: f.Name, Type: f.Type}
	}
	return nil
}

// encodeBackpatched writes a length-prefixed region: reserve one byte,
// run body to append the payload, then patch the length in. When the
// length varint needs more than one byte the remainder is spliced in
// ahead of the payload. prefix keeps the scratch locals distinct when
// regions nest.
func (g *Generator) encodeBackpatched(prefix string, body func() error) error {
	mark, sz, tail := prefix+"mark", prefix+"sz", prefix+"tail"
	g.p("buff << 0 # length byte, patched below")
	g.p(mark, " = buff.bytesize")
	if err := body(); err != nil {
		return err
	}
	g.p(sz, " = buff.bytesize - ", mark)
	g.p("if ", sz, " < 0x80")
	g.in()
	g.p("buff.setbyte(", mark, " - 1, ", sz, ")")
	g.out()
	g.p("else")
	g.in()
	g.p("buff.setbyte(", mark, " - 1, (", sz, " & 0x7F) | 0x80)")
	g.p(sz, " >>= 7")
	g.p(tail, " = \"\".b")
	g.p("while ", sz, " >= 0x80")
	g.in()
	g.p(tail, " << ((", sz, " & 0x7F) | 0x80)")
	g.p(sz, " >>= 7")
	g.out()
	g.p("end")
	g.p(tail, " << ", sz)
	g.p("buff.insert(", mark, ", ", tail, ")")
	g.out()
	g.p("end")
	return nil
}

// encodeMessageValue appends a tagged submessage record for the
// scratch local src, which must be non-nil.
func (g *Generator) encodeMessageValue(f *descriptor.Field, src, prefix string) error {
	g.encodeTag(f)
	return g.encodeBackpatched(prefix, func() error {
		g.p(src, "._encode(buff)")
		return nil
	})
}

// genEncode emits the _encode(buff) method.
func (g *Generator) genEncode(m *descriptor.Message) error {
	g.p("def _encode(buff)")
	g.in()
	seen := make(map[*descriptor.Oneof]bool)
	for _, f := range m.Fields {
		if f.Oneof != nil {
			if !seen[f.Oneof] {
				seen[f.Oneof] = true
				if err := g.encodeOneof(f.Oneof); err != nil {
					return err
				}
			}
			continue
		}
		if err := g.encodeField(f); err != nil {
			return err
		}
	}
	g.p("buff")
	g.out()
	g.p("end")
	g.p()
	return nil
}

func (g *Generator) encodeField(f *descriptor.Field) error {
	switch {
	case f.IsMap:
		return g.encodeMap(f)
	case f.Repeated() && f.Packed:
		return g.encodePacked(f)
	case f.Repeated():
		return g.encodeRepeated(f)
	case f.Type == descriptor.TypeMessage:
		g.p("val = @", f.Name)
		g.p("if val")
		g.in()
		if err := g.encodeMessageValue(f, "val", ""); err != nil {
			return err
		}
		g.out()
		g.p("end")
		return nil
	default:
		return g.encodeGatedScalar(f)
	}
}

// encodeGatedScalar writes one tagged scalar record, omitted when the
// value equals the proto3 default for the field's type.
func (g *Generator) encodeGatedScalar(f *descriptor.Field) error {
	g.p("val = @", f.Name)
	switch f.Type {
	case descriptor.TypeBool:
		g.p("if val == true")
	case descriptor.TypeString, descriptor.TypeBytes:
		g.p("if val.bytesize > 0")
	default:
		g.p("if val != 0")
	}
	g.in()
	g.encodeTag(f)
	if err := g.encodeScalarValue(f, "val"); err != nil {
		return err
	}
	g.out()
	g.p("end")
	return nil
}

// encodeOneof writes exactly the active member, or nothing when the
// group is unset. The active member is written even when it holds its
// type's default value.
func (g *Generator) encodeOneof(o *descriptor.Oneof) error {
	g.p("case @", o.Name)
	for _, f := range o.Fields {
		g.p("when :", f.Name)
		g.in()
		g.p("val = @", f.Name)
		if f.Type == descriptor.TypeMessage {
			g.p("if val")
			g.in()
			if err := g.encodeMessageValue(f, "val", ""); err != nil {
				return err
			}
			g.out()
			g.p("end")
		} else {
			g.encodeTag(f)
			if err := g.encodeScalarValue(f, "val"); err != nil {
				return err
			}
		}
		g.out()
	}
	g.p("end")
	return nil
}

// encodePacked writes one LEN record whose payload is the bare
// concatenation of the element values, length back-patched.
func (g *Generator) encodePacked(f *descriptor.Field) error {
	g.p("list = @", f.Name)
	g.p("if list.length > 0")
	g.in()
	g.encodeTag(f)
	err := g.encodeBackpatched("", func() error {
		g.p("list.each do |item|")
		g.in()
		if err := g.encodeScalarValue(f, "item"); err != nil {
			return err
		}
		g.out()
		g.p("end")
		return nil
	})
	if err != nil {
		return err
	}
	g.out()
	g.p("end")
	return nil
}

// encodeRepeated writes one tagged record per element.
func (g *Generator) encodeRepeated(f *descriptor.Field) error {
	g.p("list = @", f.Name)
	g.p("if list.length > 0")
	g.in()
	g.p("list.each do |item|")
	g.in()
	if f.Type == descriptor.TypeMessage {
		if err := g.encodeMessageValue(f, "item", ""); err != nil {
			return err
		}
	} else {
		g.encodeTag(f)
		if err := g.encodeScalarValue(f, "item"); err != nil {
			return err
		}
	}
	g.out()
	g.p("end")
	g.out()
	g.p("end")
	return nil
}

// encodeMap writes each entry as a LEN record framing the key field
// and the value field. Entry order follows hash insertion order.
func (g *Generator) encodeMap(f *descriptor.Field) error {
	keyField := *f.Key
	keyField.Number = 1
	valueField := *f.Value
	valueField.Number = 2

	g.p("map = @", f.Name)
	g.p("if map.size > 0")
	g.in()
	g.p("map.each do |key, map_val|")
	g.in()
	g.encodeTag(f)
	err := g.encodeBackpatched("entry_", func() error {
		g.encodeTag(&keyField)
		if err := g.encodeScalarValue(&keyField, "key"); err != nil {
			return err
		}
		if valueField.Type == descriptor.TypeMessage {
			return g.encodeMessageValue(&valueField, "map_val", "v")
		}
		g.encodeTag(&valueField)
		return g.encodeScalarValue(&valueField, "map_val")
	})
	if err != nil {
		return err
	}
	g.out()
	g.p("end")
	g.out()
	g.p("end")
	return nil
}
