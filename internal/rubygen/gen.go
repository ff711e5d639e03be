// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rubygen emits Ruby source implementing the proto3 wire
// format for a resolved descriptor file. The output is self-contained:
// each message becomes a plain Ruby class carrying its own encoder and
// decoder, and each enum a module of integer constants. Only fields
// referencing well-known wrapper types pull in the proto_ruby runtime.
package rubygen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/lumaly/ruby-protobuf/internal/descriptor"
)

// A Generator accumulates the emitted source for one descriptor file.
type Generator struct {
	bytes.Buffer

	file     *descriptor.File
	indent   string
	requires map[string]bool
}

// New returns a Generator for the given file.
func New(file *descriptor.File) *Generator {
	return &Generator{
		file:     file,
		requires: make(map[string]bool),
	}
}

// Generate emits the complete Ruby source for the file.
func (g *Generator) Generate() (string, error) {
	if err := g.file.Resolve(); err != nil {
		return "", err
	}

	g.Reset()
	components := namespaceComponents(g.file.Package, g.file.RubyPackage)
	for _, c := range components {
		g.p("module ", c)
		g.in()
	}
	if len(g.file.Messages) > 0 {
		g.p("DecodeError = Class.new(StandardError) unless const_defined?(:DecodeError)")
		g.p()
	}
	for _, e := range g.file.Enums {
		g.genEnum(e)
	}
	for _, m := range g.file.Messages {
		if err := g.genMessage(m); err != nil {
			return "", err
		}
	}
	for range components {
		g.out()
		g.p("end")
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "# frozen_string_literal: true\n\n")
	fmt.Fprintf(&out, "# Code generated by protoc-gen-ruby. DO NOT EDIT.\n")
	fmt.Fprintf(&out, "# source: %s\n\n", g.file.Name)
	if len(g.requires) > 0 {
		reqs := make([]string, 0, len(g.requires))
		for r := range g.requires {
			reqs = append(reqs, r)
		}
		sort.Strings(reqs)
		for _, r := range reqs {
			fmt.Fprintf(&out, "require %q\n", r)
		}
		fmt.Fprintf(&out, "\n")
	}
	out.Write(g.Bytes())
	return out.String(), nil
}

// p prints the arguments to the generated output, one line per call.
func (g *Generator) p(args ...interface{}) {
	if len(args) > 0 {
		g.WriteString(g.indent)
	}
	for _, a := range args {
		switch v := a.(type) {
		case string:
			g.WriteString(v)
		case int:
			fmt.Fprint(g, v)
		case int32:
			fmt.Fprint(g, v)
		case uint64:
			fmt.Fprint(g, v)
		default:
			fmt.Fprint(g, v)
		}
	}
	g.WriteByte('\n')
}

// in indents the output one level deeper.
func (g *Generator) in() { g.indent += "  " }

// out unindents the output one level.
func (g *Generator) out() {
	if len(g.indent) > 0 {
		g.indent = g.indent[2:]
	}
}

// typeRef returns the Ruby constant path for a message or enum type
// name. Well-known wrapper types resolve to the proto_ruby runtime and
// record the require for the file preamble. Names within the file's
// own package are emitted relative to the file's namespace; foreign
// names are emitted as an absolute path from the root namespace.
func (g *Generator) typeRef(name string) string {
	if rt, ok := wellKnown[name]; ok {
		g.requires[wellKnownRequire] = true
		return rt
	}
	if !strings.Contains(name, ".") {
		return name
	}
	if pkg := g.file.Package; pkg != "" && strings.HasPrefix(name, pkg+".") {
		return strings.Join(strings.Split(strings.TrimPrefix(name, pkg+"."), "."), "::")
	}
	if pkg := g.file.Package; pkg == "" {
		first := strings.SplitN(name, ".", 2)[0]
		for _, m := range g.file.Messages {
			if m.Name == first {
				return strings.Join(strings.Split(name, "."), "::")
			}
		}
		for _, e := range g.file.Enums {
			if e.Name == first {
				return strings.Join(strings.Split(name, "."), "::")
			}
		}
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = rubyConstant(p)
	}
	return "::" + strings.Join(parts, "::")
}

// An UnknownTypeError reports a field whose type the emitter cannot
// categorize. Generation aborts.
type UnknownTypeError struct {
	Field string
	Type  descriptor.Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("field %s has unknown type %d", e.Field, e.Type)
}

// defaultLiteral returns the Ruby literal for the canonical proto3
// default of a field.
func defaultLiteral(f *descriptor.Field) string {
	if f.IsMap {
		return "{}"
	}
	if f.Repeated() {
		return "[]"
	}
	return scalarDefault(f)
}

func scalarDefault(f *descriptor.Field) string {
	switch f.Type {
	case descriptor.TypeDouble, descriptor.TypeFloat:
		return "0.0"
	case descriptor.TypeBool:
		return "false"
	case descriptor.TypeString:
		return `""`
	case descriptor.TypeBytes:
		return `"".b`
	case descriptor.TypeMessage:
		return "nil"
	default:
		return "0"
	}
}

// bounds returns the inclusive range of an integer scalar type. ok is
// false for non-integer types, which take no bounds check.
func bounds(t descriptor.Type) (min, max string, ok bool) {
	switch t {
	case descriptor.TypeInt32, descriptor.TypeSint32, descriptor.TypeSfixed32:
		return "-2147483648", "2147483647", true
	case descriptor.TypeInt64, descriptor.TypeSint64, descriptor.TypeSfixed64:
		return "-9223372036854775808", "9223372036854775807", true
	case descriptor.TypeUint32, descriptor.TypeFixed32:
		return "0", "4294967295", true
	case descriptor.TypeUint64, descriptor.TypeFixed64:
		return "0", "18446744073709551615", true
	}
	return "", "", false
}

// tagVarint returns the varint encoding of a wire tag.
func tagVarint(tag uint64) []byte {
	var b []byte
	for tag >= 0x80 {
		b = append(b, byte(tag&0x7f|0x80))
		tag >>= 7
	}
	return append(b, byte(tag))
}

func hexByte(b byte) string { return fmt.Sprintf("0x%02x", b) }

func hexInt(v uint64) string { return fmt.Sprintf("0x%02x", v) }

// maskLiteral returns the bitmask literal selecting an optional
// field's presence bit.
func maskLiteral(m *descriptor.Message, f *descriptor.Field) string {
	return fmt.Sprintf("0x%x", uint64(1)<<m.BitIndex(f))
}
