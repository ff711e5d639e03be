// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The protoc-gen-ruby binary is a protoc plugin to generate Ruby
// message classes implementing the proto3 wire format. Run it by
// putting it in your path with the name protoc-gen-ruby and invoking
//
//	protoc --ruby_out=output_directory input_directory/file.proto
//
// The output for file.proto is written to output_directory/file_pb.rb.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lumaly/ruby-protobuf/internal/plugin"
)

func main() {
	if len(os.Args) > 1 {
		fmt.Fprintf(os.Stderr, "%s: unknown argument %q (this program should be run by protoc, not directly)\n",
			filepath.Base(os.Args[0]), os.Args[1])
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.WarnLevel)

	var flags flag.FlagSet
	verbose := flags.Bool("verbose", false, "log each generated file to stderr")
	opts := &plugin.Options{
		ParamFunc: func(name, value string) error {
			if err := flags.Set(name, value); err != nil {
				return err
			}
			if *verbose {
				logger = logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		Log: &logger,
	}
	if err := plugin.Run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
		os.Exit(1)
	}
}
