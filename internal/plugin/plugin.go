// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plugin implements the protoc plugin protocol for the Ruby
// generator: a CodeGeneratorRequest is read from standard input, each
// requested file is wrapped and generated, and a CodeGeneratorResponse
// is written to standard output.
//
// Errors from the generator are reported through the error field of
// the response; errors that indicate a problem in protoc itself
// (unparsable input, I/O errors) are returned to the caller.
package plugin

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/lumaly/ruby-protobuf/internal/descriptor"
	"github.com/lumaly/ruby-protobuf/internal/rubygen"
)

// Options are optional parameters to Run.
type Options struct {
	// ParamFunc is called with each generator parameter protoc passes
	// through --ruby_opt (or after the colon in --ruby_out). The
	// (flag.FlagSet).Set method matches this signature.
	ParamFunc func(name, value string) error

	// Log receives progress at debug level. Nil disables logging.
	Log *zerolog.Logger
}

// Run executes the plugin against standard input and output.
func Run(opts *Options) error {
	in, err := io.ReadAll(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "reading request")
	}
	req := &pluginpb.CodeGeneratorRequest{}
	if err := proto.Unmarshal(in, req); err != nil {
		return errors.Wrap(err, "parsing CodeGeneratorRequest")
	}
	resp := Generate(req, opts)
	out, err := proto.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "marshaling CodeGeneratorResponse")
	}
	if _, err := os.Stdout.Write(out); err != nil {
		return errors.Wrap(err, "writing response")
	}
	return nil
}

// Generate produces the response for one request. Generation failures
// are carried in the response error field.
func Generate(req *pluginpb.CodeGeneratorRequest, opts *Options) *pluginpb.CodeGeneratorResponse {
	if opts == nil {
		opts = &Options{}
	}
	log := zerolog.Nop()
	if opts.Log != nil {
		log = *opts.Log
	}
	resp := &pluginpb.CodeGeneratorResponse{
		SupportedFeatures: proto.Uint64(uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)),
	}
	if err := parseParams(req.GetParameter(), opts.ParamFunc); err != nil {
		resp.Error = proto.String(err.Error())
		return resp
	}
	if opts.Log != nil {
		log = *opts.Log
	}

	byName := make(map[string]*descriptorpb.FileDescriptorProto, len(req.GetProtoFile()))
	for _, fd := range req.GetProtoFile() {
		byName[fd.GetName()] = fd
	}
	if len(req.GetFileToGenerate()) == 0 {
		resp.Error = proto.String("no files to generate")
		return resp
	}
	for _, name := range req.GetFileToGenerate() {
		fd, ok := byName[name]
		if !ok {
			resp.Error = proto.String("protoc did not supply a descriptor for " + name)
			return resp
		}
		file, err := descriptor.Wrap(fd)
		if err != nil {
			resp.Error = proto.String(err.Error())
			return resp
		}
		src, err := rubygen.New(file).Generate()
		if err != nil {
			resp.Error = proto.String(name + ": " + err.Error())
			return resp
		}
		out := OutputName(name)
		log.Debug().Str("proto", name).Str("out", out).Int("bytes", len(src)).Msg("generated")
		resp.File = append(resp.File, &pluginpb.CodeGeneratorResponse_File{
			Name:    proto.String(out),
			Content: proto.String(src),
		})
	}
	return resp
}

// OutputName maps a .proto path to the generated Ruby file path.
func OutputName(protoName string) string {
	return strings.TrimSuffix(protoName, ".proto") + "_pb.rb"
}

// parseParams forwards comma-separated key=value generator parameters.
func parseParams(parameter string, paramFunc func(name, value string) error) error {
	if parameter == "" || paramFunc == nil {
		return nil
	}
	for _, param := range strings.Split(parameter, ",") {
		var value string
		if i := strings.Index(param, "="); i >= 0 {
			param, value = param[:i], param[i+1:]
		}
		if err := paramFunc(param, value); err != nil {
			return errors.Wrapf(err, "parameter %q", param)
		}
	}
	return nil
}
