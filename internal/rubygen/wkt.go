// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

// The well-known wrapper types and Timestamp are not generated; fields
// referencing them resolve to the pre-written counterparts in the
// proto_ruby runtime, and the file declares the require.
const wellKnownRequire = "proto_ruby/well_known"

var wellKnown = map[string]string{
	"google.protobuf.BoolValue":   "ProtoRuby::BoolValue",
	"google.protobuf.Int32Value":  "ProtoRuby::Int32Value",
	"google.protobuf.Int64Value":  "ProtoRuby::Int64Value",
	"google.protobuf.UInt32Value": "ProtoRuby::UInt32Value",
	"google.protobuf.UInt64Value": "ProtoRuby::UInt64Value",
	"google.protobuf.FloatValue":  "ProtoRuby::FloatValue",
	"google.protobuf.DoubleValue": "ProtoRuby::DoubleValue",
	"google.protobuf.StringValue": "ProtoRuby::StringValue",
	"google.protobuf.BytesValue":  "ProtoRuby::BytesValue",
	"google.protobuf.Timestamp":   "ProtoRuby::Timestamp",
}
