// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumaly/ruby-protobuf/internal/descriptor"
)

// gen generates a file and fails the test on error.
func gen(t *testing.T, f *descriptor.File) string {
	t.Helper()
	src, err := New(f).Generate()
	require.NoError(t, err)
	return src
}

// oneMessage wraps a single message in a file under package "t".
func oneMessage(m *descriptor.Message) *descriptor.File {
	return &descriptor.File{Name: "t.proto", Package: "t", Messages: []*descriptor.Message{m}}
}

func TestHeader(t *testing.T) {
	src := gen(t, &descriptor.File{Name: "acme/user.proto", Package: "acme.v1"})
	assert.True(t, strings.HasPrefix(src, "# frozen_string_literal: true\n"))
	assert.Contains(t, src, "# Code generated by protoc-gen-ruby. DO NOT EDIT.\n")
	assert.Contains(t, src, "# source: acme/user.proto\n")
}

func TestNamespaceFromPackage(t *testing.T) {
	src := gen(t, &descriptor.File{Name: "t.proto", Package: "acme.foo_bar.v1"})
	assert.Contains(t, src, "module Acme\n")
	assert.Contains(t, src, "  module FooBar\n")
	assert.Contains(t, src, "    module V1\n")
}

func TestNamespaceOverride(t *testing.T) {
	src := gen(t, &descriptor.File{
		Name:        "t.proto",
		Package:     "acme.v1",
		RubyPackage: "Acme::Protos",
	})
	assert.Contains(t, src, "module Acme\n")
	assert.Contains(t, src, "  module Protos\n")
	assert.NotContains(t, src, "module V1")
}

func TestNoPackage(t *testing.T) {
	src := gen(t, oneMessage(&descriptor.Message{Name: "M"}))
	assert.Contains(t, src, "module T\n")

	src = gen(t, &descriptor.File{
		Name:     "t.proto",
		Messages: []*descriptor.Message{{Name: "M"}},
	})
	assert.Contains(t, src, "class M\n")
	assert.NotContains(t, src, "module")
}

func TestDecodeErrorDefinedOnlyWithMessages(t *testing.T) {
	withMsg := gen(t, oneMessage(&descriptor.Message{Name: "M"}))
	assert.Contains(t, withMsg, "DecodeError = Class.new(StandardError) unless const_defined?(:DecodeError)")

	enumOnly := gen(t, &descriptor.File{
		Name:    "t.proto",
		Package: "t",
		Enums:   []*descriptor.Enum{{Name: "E", Values: []descriptor.EnumValue{{Name: "A", Number: 0}}}},
	})
	assert.NotContains(t, enumOnly, "DecodeError")
}

func TestWellKnownTypeResolution(t *testing.T) {
	m := &descriptor.Message{
		Name: "M",
		Fields: []*descriptor.Field{{
			Name:     "created_at",
			Number:   1,
			Type:     descriptor.TypeMessage,
			TypeName: "google.protobuf.Timestamp",
			Label:    descriptor.LabelRequired,
		}},
	}
	src := gen(t, oneMessage(m))
	assert.Contains(t, src, `require "proto_ruby/well_known"`)
	assert.Contains(t, src, "ProtoRuby::Timestamp.allocate.decode_from(buff, index, index + msg_len)")
	assert.NotContains(t, src, "Google::Protobuf")
}

func TestNoRequireWithoutWellKnown(t *testing.T) {
	src := gen(t, oneMessage(&descriptor.Message{Name: "M"}))
	assert.NotContains(t, src, "require")
}

func TestTypeRefSamePackage(t *testing.T) {
	inner := &descriptor.Message{Name: "Inner"}
	outer := &descriptor.Message{
		Name:     "Outer",
		Messages: []*descriptor.Message{inner},
		Fields: []*descriptor.Field{{
			Name:     "inner",
			Number:   1,
			Type:     descriptor.TypeMessage,
			TypeName: "t.Outer.Inner",
			Label:    descriptor.LabelRequired,
		}},
	}
	src := gen(t, oneMessage(outer))
	assert.Contains(t, src, "@inner = Outer::Inner.allocate.decode_from(buff, index, index + msg_len)")
}

func TestTypeRefForeignPackage(t *testing.T) {
	m := &descriptor.Message{
		Name: "M",
		Fields: []*descriptor.Field{{
			Name:     "other",
			Number:   1,
			Type:     descriptor.TypeMessage,
			TypeName: "other.pkg.Thing",
			Label:    descriptor.LabelRequired,
		}},
	}
	src := gen(t, oneMessage(m))
	assert.Contains(t, src, "::Other::Pkg::Thing.allocate.decode_from")
}

func TestUnknownTypeAbortsGeneration(t *testing.T) {
	m := &descriptor.Message{
		Name: "M",
		Fields: []*descriptor.Field{{
			Name:   "mystery",
			Number: 1,
			Type:   descriptor.Type(99),
			Label:  descriptor.LabelRequired,
		}},
	}
	_, err := New(oneMessage(m)).Generate()
	require.Error(t, err)
	var unknownErr *UnknownTypeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "mystery", unknownErr.Field)
}

func TestCapacityAbortsGeneration(t *testing.T) {
	m := &descriptor.Message{Name: "Wide"}
	for i := int32(0); i < descriptor.MaxOptionalFields+1; i++ {
		m.Fields = append(m.Fields, &descriptor.Field{
			Name:   "f" + strings.Repeat("x", int(i)+1),
			Number: i + 1,
			Type:   descriptor.TypeInt32,
			Label:  descriptor.LabelOptional,
		})
	}
	_, err := New(oneMessage(m)).Generate()
	require.Error(t, err)
	var capErr *descriptor.CapacityError
	assert.ErrorAs(t, err, &capErr)
}

func TestTagVarint(t *testing.T) {
	assert.Equal(t, []byte{0x08}, tagVarint(0x08))
	assert.Equal(t, []byte{0x0a}, tagVarint(0x0a))
	// Field 16, varint: tag value 128 takes two bytes.
	assert.Equal(t, []byte{0x80, 0x01}, tagVarint(128))
	assert.Equal(t, []byte{0xd2, 0x02}, tagVarint(338))
}

func TestBounds(t *testing.T) {
	min, max, ok := bounds(descriptor.TypeInt32)
	require.True(t, ok)
	assert.Equal(t, "-2147483648", min)
	assert.Equal(t, "2147483647", max)

	min, max, ok = bounds(descriptor.TypeUint64)
	require.True(t, ok)
	assert.Equal(t, "0", min)
	assert.Equal(t, "18446744073709551615", max)

	_, _, ok = bounds(descriptor.TypeString)
	assert.False(t, ok)
	_, _, ok = bounds(descriptor.TypeEnum)
	assert.False(t, ok)
}

func TestDefaultLiterals(t *testing.T) {
	cases := []struct {
		f    *descriptor.Field
		want string
	}{
		{&descriptor.Field{Type: descriptor.TypeInt32, Label: descriptor.LabelRequired}, "0"},
		{&descriptor.Field{Type: descriptor.TypeDouble, Label: descriptor.LabelRequired}, "0.0"},
		{&descriptor.Field{Type: descriptor.TypeBool, Label: descriptor.LabelRequired}, "false"},
		{&descriptor.Field{Type: descriptor.TypeString, Label: descriptor.LabelRequired}, `""`},
		{&descriptor.Field{Type: descriptor.TypeBytes, Label: descriptor.LabelRequired}, `"".b`},
		{&descriptor.Field{Type: descriptor.TypeMessage, Label: descriptor.LabelRequired}, "nil"},
		{&descriptor.Field{Type: descriptor.TypeEnum, Label: descriptor.LabelRequired}, "0"},
		{&descriptor.Field{Type: descriptor.TypeInt32, Label: descriptor.LabelRepeated}, "[]"},
		{&descriptor.Field{Type: descriptor.TypeMessage, Label: descriptor.LabelRepeated, IsMap: true}, "{}"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, defaultLiteral(c.f))
	}
}

func TestRubyConstant(t *testing.T) {
	assert.Equal(t, "FooBar", rubyConstant("foo_bar"))
	assert.Equal(t, "V1", rubyConstant("v1"))
	assert.Equal(t, "Acme", rubyConstant("acme"))
	assert.Equal(t, "FooBar", rubyConstant("FooBar"))
}

func TestNamespaceComponents(t *testing.T) {
	assert.Equal(t, []string{"Acme", "V1"}, namespaceComponents("acme.v1", ""))
	assert.Equal(t, []string{"A", "B"}, namespaceComponents("whatever", "A::B"))
	assert.Nil(t, namespaceComponents("", ""))
}
