// Copyright 2023 The ruby-protobuf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rubygen

import (
	"strings"
)

// rubyConstant converts a proto identifier to a Ruby constant name.
// Message and enum names are conventionally already PascalCase; package
// components are lower_snake and need each word capitalized.
//
// If there is an interior underscore followed by a lower case letter,
// drop the underscore and convert the letter to upper case.
func rubyConstant(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' && i+1 < len(s) && isASCIILower(s[i+1]):
			// Skip over '_' in "_{{lowercase}}".
		case c == '_':
			b = append(b, '_')
		case isASCIIDigit(c):
			b = append(b, c)
		default:
			// The next word is a sequence of characters that must
			// start upper case.
			if isASCIILower(c) {
				c -= 'a' - 'A'
			}
			b = append(b, c)
			for ; i+1 < len(s) && isASCIILower(s[i+1]); i++ {
				b = append(b, s[i+1])
			}
		}
	}
	return string(b)
}

// namespaceComponents returns the nested module names for a file. An
// explicit ruby_package option is split on "::" and used verbatim;
// otherwise each component of the proto package is capitalized.
func namespaceComponents(pkg, override string) []string {
	if override != "" {
		return strings.Split(override, "::")
	}
	if pkg == "" {
		return nil
	}
	parts := strings.Split(pkg, ".")
	for i, p := range parts {
		parts[i] = rubyConstant(p)
	}
	return parts
}

func isASCIILower(c byte) bool {
	return 'a' <= c && c <= 'z'
}

func isASCIIDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
