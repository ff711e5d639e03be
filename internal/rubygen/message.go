// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

import (
	"strings"

	"github.com/lumaly/ruby-protobuf/internal/descriptor"
)

// genMessage emits one message class: entry points, nested types,
// accessors, mutators, constructor, presence predicates, dictionary
// conversion, encoder and decoder, in that order. Nested messages
// recurse; descriptors form a tree, so the recursion terminates.
func (g *Generator) genMessage(m *descriptor.Message) error {
	g.p("class ", m.Name)
	g.in()

	g.p("def self.decode(buff)")
	g.in()
	g.p("allocate.decode_from(buff, 0, buff.bytesize)")
	g.out()
	g.p("end")
	g.p()

	g.p("def self.encode(msg)")
	g.in()
	g.p(`msg._encode("".b)`)
	g.out()
	g.p("end")
	g.p()

	for _, e := range m.Enums {
		g.genEnum(e)
	}
	for _, sub := range m.Messages {
		if err := g.genMessage(sub); err != nil {
			return err
		}
	}

	g.genReaders(m)
	if err := g.genWriters(m); err != nil {
		return err
	}
	g.genInitialize(m)
	g.genPresence(m)
	g.genToH(m)
	if err := g.genEncode(m); err != nil {
		return err
	}
	if err := g.genDecodeFrom(m); err != nil {
		return err
	}

	g.out()
	g.p("end")
	g.p()
	return nil
}

// singularEnum reports whether the field takes the symbolic enum
// accessor and the resolving mutator.
func singularEnum(f *descriptor.Field) bool {
	return f.IsEnum() && !f.Repeated() && !f.IsMap
}

// intScalar reports whether the field's type takes a bounds check.
func intScalar(f *descriptor.Field) bool {
	_, _, ok := bounds(f.Type)
	return ok && !f.IsEnum()
}

func (g *Generator) genReaders(m *descriptor.Message) {
	var plain []string
	var enums []*descriptor.Field
	seen := make(map[*descriptor.Oneof]bool)
	for _, f := range m.Fields {
		if f.Oneof != nil && !seen[f.Oneof] {
			seen[f.Oneof] = true
			plain = append(plain, f.Oneof.Name)
		}
		if singularEnum(f) {
			enums = append(enums, f)
			continue
		}
		plain = append(plain, f.Name)
	}
	if len(plain) > 0 {
		g.p("attr_reader :", strings.Join(plain, ", :"))
		g.p()
	}
	for _, f := range enums {
		// Known numbers read back as the constant's symbol; unknown
		// numbers pass through unchanged.
		g.p("def ", f.Name)
		g.in()
		g.p(g.typeRef(f.TypeName), ".lookup(@", f.Name, ") || @", f.Name)
		g.out()
		g.p("end")
		g.p()
	}
}

// boundsCheck emits the range guard for an integer scalar. The field
// keeps its previous value when the guard raises.
func (g *Generator) boundsCheck(f *descriptor.Field, src, what string) {
	min, max, ok := bounds(f.Type)
	if !ok {
		return
	}
	g.p("unless ", min, " <= ", src, " && ", src, " <= ", max)
	g.in()
	g.p(`raise RangeError, "Value (#{`, src, `}) for `, what, " ", f.Name, " is out of bounds (", min, "..", max, `)"`)
	g.out()
	g.p("end")
}

// elementwiseCheck guards every element of a repeated integer field.
func (g *Generator) elementwiseCheck(f *descriptor.Field, src string) {
	g.p(src, ".each do |item|")
	g.in()
	g.boundsCheck(f, "item", "element of field")
	g.out()
	g.p("end")
}

func (g *Generator) genWriters(m *descriptor.Message) error {
	var plain []string
	for _, f := range m.Fields {
		switch {
		case f.Oneof != nil:
			g.p("def ", f.Name, "=(v)")
			g.in()
			g.boundsCheck(f, "v", "field")
			g.p("@", f.Oneof.Name, " = :", f.Name)
			if singularEnum(f) {
				g.p("@", f.Name, " = ", g.typeRef(f.TypeName), ".resolve(v) || v")
			} else {
				g.p("@", f.Name, " = v")
			}
			g.out()
			g.p("end")
			g.p()
		case f.Optional():
			g.p("def ", f.Name, "=(v)")
			g.in()
			g.boundsCheck(f, "v", "field")
			g.p("@_bitmask |= ", maskLiteral(m, f))
			if singularEnum(f) {
				g.p("@", f.Name, " = ", g.typeRef(f.TypeName), ".resolve(v) || v")
			} else {
				g.p("@", f.Name, " = v")
			}
			g.out()
			g.p("end")
			g.p()
		case singularEnum(f):
			// Symbols store their number; unknown symbols and raw
			// integers store as given.
			g.p("def ", f.Name, "=(v)")
			g.in()
			g.p("@", f.Name, " = ", g.typeRef(f.TypeName), ".resolve(v) || v")
			g.out()
			g.p("end")
			g.p()
		case f.Repeated() && intScalar(f):
			g.p("def ", f.Name, "=(v)")
			g.in()
			g.elementwiseCheck(f, "v")
			g.p("@", f.Name, " = v")
			g.out()
			g.p("end")
			g.p()
		case !f.Repeated() && !f.IsMap && intScalar(f):
			g.p("def ", f.Name, "=(v)")
			g.in()
			g.boundsCheck(f, "v", "field")
			g.p("@", f.Name, " = v")
			g.out()
			g.p("end")
			g.p()
		default:
			plain = append(plain, f.Name)
		}
	}
	if len(plain) > 0 {
		g.p("attr_writer :", strings.Join(plain, ", :"))
		g.p()
	}
	return nil
}

// ctorDefault is the keyword argument default. Optional fields and
// oneof members default to nil so the constructor can distinguish
// "not passed" from an explicit default value.
func ctorDefault(f *descriptor.Field) string {
	if f.Oneof != nil || f.Optional() {
		return "nil"
	}
	return defaultLiteral(f)
}

func (g *Generator) genInitialize(m *descriptor.Message) {
	params := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		params = append(params, f.Name+": "+ctorDefault(f))
	}
	g.p("def initialize(", strings.Join(params, ", "), ")")
	g.in()
	if m.OptionalCount() > 0 {
		g.p("@_bitmask = 0")
	}
	seen := make(map[*descriptor.Oneof]bool)
	for _, f := range m.Fields {
		switch {
		case f.Oneof != nil:
			if !seen[f.Oneof] {
				seen[f.Oneof] = true
				g.ctorOneof(f.Oneof)
			}
		case f.Optional():
			g.p("if ", f.Name, ".nil?")
			g.in()
			g.p("@", f.Name, " = ", defaultLiteral(f))
			g.out()
			g.p("else")
			g.in()
			g.p("@_bitmask |= ", maskLiteral(m, f))
			g.boundsCheck(f, f.Name, "field")
			if singularEnum(f) {
				g.p("@", f.Name, " = ", g.typeRef(f.TypeName), ".resolve(", f.Name, ") || ", f.Name)
			} else {
				g.p("@", f.Name, " = ", f.Name)
			}
			g.out()
			g.p("end")
		case singularEnum(f):
			g.p("@", f.Name, " = ", g.typeRef(f.TypeName), ".resolve(", f.Name, ") || ", f.Name)
		case f.Repeated() && intScalar(f):
			g.elementwiseCheck(f, f.Name)
			g.p("@", f.Name, " = ", f.Name)
		case !f.Repeated() && !f.IsMap && intScalar(f):
			g.boundsCheck(f, f.Name, "field")
			g.p("@", f.Name, " = ", f.Name)
		default:
			g.p("@", f.Name, " = ", f.Name)
		}
	}
	g.out()
	g.p("end")
	g.p()
}

// ctorOneof installs member defaults, then applies the given members
// in declaration order; the last one passed wins the discriminator.
func (g *Generator) ctorOneof(o *descriptor.Oneof) {
	g.p("@", o.Name, " = nil")
	for _, f := range o.Fields {
		g.p("@", f.Name, " = ", scalarDefault(f))
	}
	for _, f := range o.Fields {
		g.p("unless ", f.Name, ".nil?")
		g.in()
		g.boundsCheck(f, f.Name, "field")
		g.p("@", o.Name, " = :", f.Name)
		if singularEnum(f) {
			g.p("@", f.Name, " = ", g.typeRef(f.TypeName), ".resolve(", f.Name, ") || ", f.Name)
		} else {
			g.p("@", f.Name, " = ", f.Name)
		}
		g.out()
		g.p("end")
	}
}

func (g *Generator) genPresence(m *descriptor.Message) {
	for _, f := range m.Fields {
		if !f.Optional() {
			continue
		}
		g.p("def has_", f.Name, "?")
		g.in()
		g.p("(@_bitmask & ", maskLiteral(m, f), ") != 0")
		g.out()
		g.p("end")
		g.p()
	}
}

func (g *Generator) genToH(m *descriptor.Message) {
	g.p("def to_h")
	g.in()
	g.p("result = {}")
	seen := make(map[*descriptor.Oneof]bool)
	for _, f := range m.Fields {
		switch {
		case f.Oneof != nil:
			if seen[f.Oneof] {
				continue
			}
			seen[f.Oneof] = true
			o := f.Oneof
			g.p("case @", o.Name)
			for _, member := range o.Fields {
				g.p("when :", member.Name)
				g.in()
				if member.Type == descriptor.TypeMessage {
					g.p("result[:", member.Name, "] = @", member.Name, ".to_h if @", member.Name)
				} else {
					g.p("result[:", member.Name, "] = @", member.Name)
				}
				g.out()
			}
			g.p("end")
		case f.Type == descriptor.TypeMessage && !f.Repeated() && !f.IsMap:
			g.p("result[:", f.Name, "] = @", f.Name, ".to_h if @", f.Name)
		default:
			g.p("result[:", f.Name, "] = @", f.Name)
		}
	}
	g.p("result")
	g.out()
	g.p("end")
	g.p()
}
