// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hexdump formats byte images in the classic
// sixteen-bytes-per-line layout with an ASCII gutter.
package hexdump

import (
	"fmt"
	"io"
	"strings"
)

const (
	chunkSize = 16
	groupSize = 8
)

// Fprint writes a dump of data to w. Each line shows the address of
// its first byte, starting at start, sixteen bytes of hex in two
// groups of eight, and the printable ASCII rendering.
func Fprint(w io.Writer, data []byte, start int64) error {
	for i := 0; i < len(data); i += chunkSize {
		chunk := data[i:min(i+chunkSize, len(data))]
		var groups []string
		for j := 0; j < len(chunk); j += groupSize {
			group := chunk[j:min(j+groupSize, len(chunk))]
			hex := make([]string, len(group))
			for k, b := range group {
				hex[k] = fmt.Sprintf("%02x", b)
			}
			groups = append(groups, strings.Join(hex, " "))
		}
		ascii := make([]byte, len(chunk))
		for j, b := range chunk {
			if 32 <= b && b <= 127 {
				ascii[j] = b
			} else {
				ascii[j] = '.'
			}
		}
		_, err := fmt.Fprintf(w, "%016x  %-48s  |%s|\n",
			start+int64(i), strings.Join(groups, "  "), ascii)
		if err != nil {
			return err
		}
	}
	return nil
}

// Dump returns the dump of data as a string.
func Dump(data []byte, start int64) string {
	var b strings.Builder
	Fprint(&b, data, start)
	return b.String()
}
