// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

import (
	"github.com/lumaly/ruby-protobuf/internal/descriptor"
)

// The decoder fragments. Each field of a message gets an inlined
// parse fragment dispatched on the field's wire tag; varint reads are
// unrolled rather than looped so the generated decoder never calls
// out of line. The reader variants differ only in how the assembled
// value is interpreted: straight unsigned assembly, a two's-complement
// reinterpretation masked to 64 or 32 bits, or the zigzag inverse for
// sint32 and sint64.

type varintKind int

const (
	varintUnsigned varintKind = iota
	varintSigned32
	varintSigned64
	varintZigzag32
	varintZigzag64
)

// pullVarint emits an unrolled 1..10 byte varint read into dest,
// advancing index. An eleventh continuation byte raises DecodeError.
func (g *Generator) pullVarint(dest string, kind varintKind) {
	g.pullVarintN(dest, kind, 10)
}

func (g *Generator) pullVarintN(dest string, kind varintKind, maxBytes int) {
	g.p(dest, " = buff.getbyte(index)")
	g.p("index += 1")
	g.p("if ", dest, " >= 0x80")
	g.in()
	g.p(dest, " &= 0x7F")
	depth := 0
	for shift := 7; ; shift += 7 {
		g.p("byte = buff.getbyte(index)")
		g.p("index += 1")
		g.p(dest, " |= (byte & 0x7F) << ", shift)
		if shift == 7*(maxBytes-1) {
			g.p(`raise DecodeError, "varint is too long" if byte >= 0x80`)
			break
		}
		g.p("if byte >= 0x80")
		g.in()
		depth++
	}
	for ; depth > 0; depth-- {
		g.out()
		g.p("end")
	}
	g.out()
	g.p("end")

	switch kind {
	case varintSigned64:
		g.p(dest, " = -((", dest, " ^ 0xFFFFFFFFFFFFFFFF) + 1) if ", dest, " >= 0x8000000000000000")
	case varintSigned32:
		g.p(dest, " &= 0xFFFFFFFF")
		g.p(dest, " = -((", dest, " ^ 0xFFFFFFFF) + 1) if ", dest, " >= 0x80000000")
	case varintZigzag32, varintZigzag64:
		g.p(dest, " = (", dest, " & 1) == 0 ? ", dest, " >> 1 : -((", dest, " + 1) >> 1)")
	}
}

// pullTag reads the next field tag into tag. Messages whose fields
// all number 15 or below take single-byte tags and get the short read.
func (g *Generator) pullTag(m *descriptor.Message) {
	if longTags(m) {
		g.pullVarintN("tag", varintUnsigned, 5)
		return
	}
	g.p("tag = buff.getbyte(index)")
	g.p("index += 1")
}

func longTags(m *descriptor.Message) bool {
	for _, f := range m.Fields {
		if f.Number > 15 {
			return true
		}
	}
	return false
}

// pullString reads a length-delimited payload into dest as UTF-8.
func (g *Generator) pullString(dest string) {
	g.p("## pull_string")
	g.pullVarint("str_len", varintUnsigned)
	g.p(dest, " = buff.byteslice(index, str_len)")
	g.p(dest, ".force_encoding(Encoding::UTF_8)")
	g.p("index += str_len")
}

// pullBytes reads a length-delimited payload into dest as raw bytes.
func (g *Generator) pullBytes(dest string) {
	g.p("## pull_bytes")
	g.pullVarint("str_len", varintUnsigned)
	g.p(dest, " = buff.byteslice(index, str_len)")
	g.p(dest, ".force_encoding(Encoding::BINARY)")
	g.p("index += str_len")
}

// pullMessage reads a length-prefixed submessage into dest by
// allocating the referenced class and parsing in place, skipping the
// constructor defaults.
func (g *Generator) pullMessage(dest, typeRef string) {
	g.p("## pull_message")
	g.pullVarint("msg_len", varintUnsigned)
	g.p(dest, " = ", typeRef, ".allocate.decode_from(buff, index, index + msg_len)")
	g.p("index += msg_len")
}

func fixedFormat(t descriptor.Type) (format string, width int) {
	switch t {
	case descriptor.TypeFixed64:
		return "Q<", 8
	case descriptor.TypeSfixed64:
		return "q<", 8
	case descriptor.TypeDouble:
		return "E", 8
	case descriptor.TypeFixed32:
		return "V", 4
	case descriptor.TypeSfixed32:
		return "l<", 4
	default: // TypeFloat
		return "e", 4
	}
}

// pullFixed reads a little-endian fixed-width value into dest.
func (g *Generator) pullFixed(dest string, t descriptor.Type) {
	format, width := fixedFormat(t)
	if width == 8 {
		g.p("## pull_fixed64")
	} else {
		g.p("## pull_fixed32")
	}
	g.p(dest, " = buff.byteslice(index, ", width, `).unpack1("`, format, `")`)
	g.p("index += ", width)
}

// pullScalar reads one non-message value of the field's type into
// dest.
func (g *Generator) pullScalar(dest string, f *descriptor.Field) error {
	switch f.Type {
	case descriptor.TypeInt32, descriptor.TypeEnum:
		g.p("## pull_varint (int32)")
		g.pullVarint(dest, varintSigned32)
	case descriptor.TypeInt64:
		g.p("## pull_varint (int64)")
		g.pullVarint(dest, varintSigned64)
	case descriptor.TypeUint32, descriptor.TypeUint64:
		g.p("## pull_varint")
		g.pullVarint(dest, varintUnsigned)
	case descriptor.TypeBool:
		g.p("## pull_varint (bool)")
		g.pullVarint(dest, varintUnsigned)
		g.p(dest, " = ", dest, " != 0")
	case descriptor.TypeSint32:
		g.p("## pull_sint32")
		g.pullVarint(dest, varintZigzag32)
	case descriptor.TypeSint64:
		g.p("## pull_sint64")
		g.pullVarint(dest, varintZigzag64)
	case descriptor.TypeFixed32, descriptor.TypeSfixed32, descriptor.TypeFloat,
		descriptor.TypeFixed64, descriptor.TypeSfixed64, descriptor.TypeDouble:
		g.pullFixed(dest, f.Type)
	case descriptor.TypeString:
		g.pullString(dest)
	case descriptor.TypeBytes:
		g.pullBytes(dest)
	default:
		return &UnknownTypeError{Field: f.Name, Type: f.Type}
	}
	return nil
}

// genDecodeFrom emits the decode_from(buff, index, len) method: the
// preamble zeroing presence and installing defaults, then the tag
// dispatch loop over [index, len).
func (g *Generator) genDecodeFrom(m *descriptor.Message) error {
	g.p("def decode_from(buff, index, len)")
	g.in()

	if m.OptionalCount() > 0 {
		g.p("@_bitmask = 0")
	}
	for _, o := range m.Oneofs {
		g.p("@", o.Name, " = nil")
	}
	for _, f := range m.Fields {
		g.p("@", f.Name, " = ", defaultLiteral(f))
	}

	if len(m.Fields) == 0 {
		g.p("self")
		g.out()
		g.p("end")
		return nil
	}

	g.p()
	g.p("return self if index >= len")
	g.p()
	g.pullTag(m)
	g.p("while true")
	g.in()
	for i, f := range m.Fields {
		kw := "if"
		if i > 0 {
			kw = "elsif"
		}
		g.p(kw, " tag == ", hexInt(f.Tag()), " # ", f.Name)
		g.in()
		if err := g.decodeField(m, f); err != nil {
			return err
		}
		g.out()
	}
	g.p("else")
	g.in()
	g.p(`raise DecodeError, "unknown tag #{tag}"`)
	g.out()
	g.p("end")
	g.out()
	g.p("end")
	g.out()
	g.p("end")
	return nil
}

// decodeTrailer closes a fragment that does not read ahead itself:
// return when the range is exhausted, otherwise read the next tag.
func (g *Generator) decodeTrailer(m *descriptor.Message) {
	g.p("return self if index >= len")
	g.pullTag(m)
}

func (g *Generator) decodeField(m *descriptor.Message, f *descriptor.Field) error {
	switch {
	case f.IsMap:
		return g.decodeMap(m, f)
	case f.Repeated() && f.Packed:
		return g.decodePacked(m, f)
	case f.Repeated():
		return g.decodeRepeated(m, f)
	case f.Type == descriptor.TypeMessage:
		g.pullMessage("@"+f.Name, g.typeRef(f.TypeName))
	default:
		if err := g.pullScalar("@"+f.Name, f); err != nil {
			return err
		}
	}
	if f.Oneof != nil {
		g.p("@", f.Oneof.Name, " = :", f.Name)
	}
	if f.Optional() {
		g.p("@_bitmask |= ", maskLiteral(m, f))
	}
	g.decodeTrailer(m)
	return nil
}

// decodePacked parses one LEN record holding concatenated elements.
func (g *Generator) decodePacked(m *descriptor.Message, f *descriptor.Field) error {
	g.p("## packed repeated ", f.Name)
	g.pullVarint("value", varintUnsigned)
	g.p("goal = index + value")
	g.p("list = @", f.Name)
	g.p("while true")
	g.in()
	g.p("break if index >= goal")
	if err := g.pullScalar("v", f); err != nil {
		return err
	}
	g.p("list << v")
	g.out()
	g.p("end")
	g.decodeTrailer(m)
	return nil
}

// decodeRepeated parses tagged elements, reading ahead after each one
// and looping while the next tag still names this field.
func (g *Generator) decodeRepeated(m *descriptor.Message, f *descriptor.Field) error {
	g.p("## repeated ", f.Name)
	g.p("list = @", f.Name)
	g.p("while true")
	g.in()
	if f.Type == descriptor.TypeMessage {
		g.pullMessage("v", g.typeRef(f.TypeName))
	} else {
		if err := g.pullScalar("v", f); err != nil {
			return err
		}
	}
	g.p("list << v")
	g.p("return self if index >= len")
	g.pullTag(m)
	g.p("break unless tag == ", hexInt(f.Tag()))
	g.out()
	g.p("end")
	return nil
}

// decodeMap parses LEN-framed key/value entries, reading ahead after
// each entry and looping while the next tag still names this field.
func (g *Generator) decodeMap(m *descriptor.Message, f *descriptor.Field) error {
	keyTag := uint64(1)<<3 | uint64(f.Key.WireType())
	valueTag := uint64(2)<<3 | uint64(f.Value.WireType())

	g.p("## map ", f.Name)
	g.p("map = @", f.Name)
	g.p("while true")
	g.in()
	g.pullVarint("value", varintUnsigned)
	g.p("goal = index + value")
	g.p("key = ", scalarDefault(f.Key))
	g.p("map_val = ", scalarDefault(f.Value))
	g.p("while index < goal")
	g.in()
	g.p("itag = buff.getbyte(index)")
	g.p("index += 1")
	g.p("if itag == ", hexInt(keyTag))
	g.in()
	if err := g.pullScalar("key", f.Key); err != nil {
		return err
	}
	g.out()
	g.p("elsif itag == ", hexInt(valueTag))
	g.in()
	if f.Value.Type == descriptor.TypeMessage {
		g.pullMessage("map_val", g.typeRef(f.Value.TypeName))
	} else {
		if err := g.pullScalar("map_val", f.Value); err != nil {
			return err
		}
	}
	g.out()
	g.p("else")
	g.in()
	g.p(`raise DecodeError, "unknown tag #{itag} in map entry"`)
	g.out()
	g.p("end")
	g.out()
	g.p("end")
	g.p("map[key] = map_val")
	g.p("return self if index >= len")
	g.pullTag(m)
	g.p("break unless tag == ", hexInt(f.Tag()))
	g.out()
	g.p("end")
	return nil
}
