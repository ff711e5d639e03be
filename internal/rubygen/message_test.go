// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumaly/ruby-protobuf/internal/descriptor"
)

const emptyGolden = `# frozen_string_literal: true

# Code generated by protoc-gen-ruby. DO NOT EDIT.
# source: t.proto

module T
  DecodeError = Class.new(StandardError) unless const_defined?(:DecodeError)

  class Empty
    def self.decode(buff)
      allocate.decode_from(buff, 0, buff.bytesize)
    end

    def self.encode(msg)
      msg._encode("".b)
    end

    def initialize()
    end

    def to_h
      result = {}
      result
    end

    def _encode(buff)
      buff
    end

    def decode_from(buff, index, len)
      self
    end
  end

end
`

func TestEmptyMessageGolden(t *testing.T) {
	src := gen(t, oneMessage(&descriptor.Message{Name: "Empty"}))
	if diff := cmp.Diff(emptyGolden, src); diff != "" {
		t.Errorf("generated message mismatch (-want +got):\n%s", diff)
	}
}

const int32SurfaceGolden = `# frozen_string_literal: true

# Code generated by protoc-gen-ruby. DO NOT EDIT.
# source: t.proto

module T
  DecodeError = Class.new(StandardError) unless const_defined?(:DecodeError)

  class M
    def self.decode(buff)
      allocate.decode_from(buff, 0, buff.bytesize)
    end

    def self.encode(msg)
      msg._encode("".b)
    end

    attr_reader :a

    def a=(v)
      unless -2147483648 <= v && v <= 2147483647
        raise RangeError, "Value (#{v}) for field a is out of bounds (-2147483648..2147483647)"
      end
      @a = v
    end

    def initialize(a: 0)
      unless -2147483648 <= a && a <= 2147483647
        raise RangeError, "Value (#{a}) for field a is out of bounds (-2147483648..2147483647)"
      end
      @a = a
    end

    def to_h
      result = {}
      result[:a] = @a
      result
    end

    def _encode(buff)
      val = @a
      if val != 0
        buff << 0x08
        val += 0x10000000000000000 if val < 0
        while val >= 0x80
          buff << ((val & 0x7F) | 0x80)
          val >>= 7
        end
        buff << val
      end
      buff
    end

`

func TestInt32SurfaceGolden(t *testing.T) {
	m := &descriptor.Message{
		Name: "M",
		Fields: []*descriptor.Field{
			{Name: "a", Number: 1, Type: descriptor.TypeInt32, Label: descriptor.LabelRequired},
		},
	}
	src := gen(t, oneMessage(m))
	i := strings.Index(src, "    def decode_from")
	require.Positive(t, i, "decode_from not found")
	if diff := cmp.Diff(int32SurfaceGolden, src[:i]); diff != "" {
		t.Errorf("generated surface mismatch (-want +got):\n%s", diff)
	}
}

// richMessage covers every field kind in one message.
func richMessage() *descriptor.Message {
	contact := &descriptor.Oneof{Name: "contact"}
	email := &descriptor.Field{Name: "email", Number: 4, Type: descriptor.TypeString, Label: descriptor.LabelRequired, Oneof: contact}
	phone := &descriptor.Field{Name: "phone", Number: 5, Type: descriptor.TypeString, Label: descriptor.LabelRequired, Oneof: contact}
	contact.Fields = []*descriptor.Field{email, phone}
	return &descriptor.Message{
		Name: "User",
		Enums: []*descriptor.Enum{{
			Name:   "Status",
			Values: []descriptor.EnumValue{{Name: "UNKNOWN", Number: 0}, {Name: "ACTIVE", Number: 1}},
		}},
		Messages: []*descriptor.Message{{
			Name: "Inner",
			Fields: []*descriptor.Field{
				{Name: "x", Number: 1, Type: descriptor.TypeInt32, Label: descriptor.LabelRequired},
			},
		}},
		Oneofs: []*descriptor.Oneof{contact},
		Fields: []*descriptor.Field{
			{Name: "a", Number: 1, Type: descriptor.TypeInt32, Label: descriptor.LabelRequired},
			{Name: "b", Number: 2, Type: descriptor.TypeString, Label: descriptor.LabelOptional},
			{Name: "status", Number: 3, Type: descriptor.TypeEnum, TypeName: "Status", Label: descriptor.LabelRequired},
			email,
			phone,
			{Name: "inner", Number: 6, Type: descriptor.TypeMessage, TypeName: "t.User.Inner", Label: descriptor.LabelRequired},
			{Name: "xs", Number: 7, Type: descriptor.TypeInt32, Label: descriptor.LabelRepeated, Packed: true},
			{Name: "attrs", Number: 8, Type: descriptor.TypeMessage, Label: descriptor.LabelRepeated, IsMap: true,
				Key:   &descriptor.Field{Name: "key", Number: 1, Type: descriptor.TypeString, Label: descriptor.LabelRequired},
				Value: &descriptor.Field{Name: "value", Number: 2, Type: descriptor.TypeInt64, Label: descriptor.LabelRequired}},
		},
	}
}

func TestReaders(t *testing.T) {
	src := gen(t, oneMessage(richMessage()))
	assert.Contains(t, src, "attr_reader :a, :b, :contact, :email, :phone, :inner, :xs, :attrs")
	assert.Contains(t, src, "def status\n")
	assert.Contains(t, src, "Status.lookup(@status) || @status")
}

func TestWriters(t *testing.T) {
	src := gen(t, oneMessage(richMessage()))

	// Optional mutators set the presence bit before assigning.
	assert.Contains(t, src, "def b=(v)\n")
	assert.Contains(t, src, "@_bitmask |= 0x1")

	// Enum mutators accept a symbol or a raw integer.
	assert.Contains(t, src, "@status = Status.resolve(v) || v")

	// Oneof mutators move the discriminator and the value together.
	assert.Contains(t, src, "@contact = :email")
	assert.Contains(t, src, "@contact = :phone")

	// Repeated integer mutators validate elementwise.
	assert.Contains(t, src, "def xs=(v)\n")
	assert.Contains(t, src, "for element of field xs is out of bounds")

	// Fields without checks share one attr_writer.
	assert.Contains(t, src, "attr_writer :inner, :attrs")
}

func TestConstructor(t *testing.T) {
	src := gen(t, oneMessage(richMessage()))
	assert.Contains(t, src,
		"def initialize(a: 0, b: nil, status: 0, email: nil, phone: nil, inner: nil, xs: [], attrs: {})")

	// Optional fields distinguish "not passed" from an explicit value.
	assert.Contains(t, src, "if b.nil?")
	assert.Contains(t, src, `@b = ""`)

	// Oneof members default to nil; the last member passed wins.
	assert.Contains(t, src, "@contact = nil")
	assert.Contains(t, src, "unless email.nil?")
	assert.Contains(t, src, "unless phone.nil?")
}

func TestPresencePredicates(t *testing.T) {
	m := &descriptor.Message{
		Name: "M",
		Fields: []*descriptor.Field{
			{Name: "a", Number: 1, Type: descriptor.TypeInt32, Label: descriptor.LabelOptional},
			{Name: "b", Number: 2, Type: descriptor.TypeString, Label: descriptor.LabelOptional},
			{Name: "c", Number: 3, Type: descriptor.TypeBool, Label: descriptor.LabelRequired},
		},
	}
	src := gen(t, oneMessage(m))
	assert.Contains(t, src, "def has_a?\n")
	assert.Contains(t, src, "(@_bitmask & 0x1) != 0")
	assert.Contains(t, src, "def has_b?\n")
	assert.Contains(t, src, "(@_bitmask & 0x2) != 0")
	assert.NotContains(t, src, "def has_c?")
}

func TestToH(t *testing.T) {
	src := gen(t, oneMessage(richMessage()))
	assert.Contains(t, src, "result[:a] = @a")
	// Submessages convert through their own to_h; nil stays absent.
	assert.Contains(t, src, "result[:inner] = @inner.to_h if @inner")
	// A oneof contributes a single entry keyed by the active member.
	assert.Contains(t, src, "case @contact")
	assert.Contains(t, src, "result[:email] = @email")
	assert.Contains(t, src, "result[:phone] = @phone")
	// Maps and repeated fields pass through raw.
	assert.Contains(t, src, "result[:attrs] = @attrs")
	assert.Contains(t, src, "result[:xs] = @xs")
}

func TestNestedMessageRecursion(t *testing.T) {
	src := gen(t, oneMessage(richMessage()))
	// The nested class is emitted inside the outer class, with its
	// own full surface.
	outerAt := indexOf(t, src, "class User")
	innerAt := indexOf(t, src, "class Inner")
	innerDecode := strings.Count(src, "def decode_from(buff, index, len)")
	assert.Less(t, outerAt, innerAt)
	assert.Equal(t, 2, innerDecode)
}
