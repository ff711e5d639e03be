// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

import (
	"github.com/lumaly/ruby-protobuf/internal/descriptor"
)

// genEnum emits a module exposing one integer constant per enum value
// and the two total lookup functions. lookup maps a number to the
// constant's symbol, resolve maps a symbol back to its number; both
// return nil for unknown inputs and the caller supplies the fallback.
func (g *Generator) genEnum(e *descriptor.Enum) {
	g.p("module ", e.Name)
	g.in()
	for _, v := range e.Values {
		g.p(v.Name, " = ", v.Number)
	}
	g.p()

	g.p("def self.lookup(val)")
	g.in()
	if len(e.Values) > 0 {
		for i, v := range e.Values {
			if i == 0 {
				g.p("if val == ", v.Number)
			} else {
				g.p("elsif val == ", v.Number)
			}
			g.in()
			g.p(":", v.Name)
			g.out()
		}
		g.p("end")
	}
	g.out()
	g.p("end")
	g.p()

	g.p("def self.resolve(val)")
	g.in()
	if len(e.Values) > 0 {
		for i, v := range e.Values {
			if i == 0 {
				g.p("if val == :", v.Name)
			} else {
				g.p("elsif val == :", v.Name)
			}
			g.in()
			g.p(v.Number)
			g.out()
		}
		g.p("end")
	}
	g.out()
	g.p("end")
	g.out()
	g.p("end")
	g.p()
}
