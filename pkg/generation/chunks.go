// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"iter"
	"strings"
)

const maxLineSize = 1 << 20

// Decoder reads newline-delimited JSON chunks.
type Decoder struct {
	sc      *bufio.Scanner
	err     error
	skipped int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{sc: sc}
}

// Chunks yields one chunk per non-blank line, lazily. Lines that are not
// valid JSON objects are skipped.
func (d *Decoder) Chunks() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for d.sc.Scan() {
			line := bytes.TrimSpace(d.sc.Bytes())
			if len(line) == 0 {
				continue
			}
			var c Chunk
			if err := json.Unmarshal(line, &c); err != nil {
				d.skipped++
				continue
			}
			if !yield(c) {
				return
			}
		}
		d.err = d.sc.Err()
	}
}

// Err returns the read error that ended iteration, if any.
func (d *Decoder) Err() error { return d.err }

// Skipped returns how many malformed lines were dropped.
func (d *Decoder) Skipped() int { return d.skipped }

// Chunks is shorthand for NewDecoder(r).Chunks().
func Chunks(r io.Reader) iter.Seq[Chunk] {
	return NewDecoder(r).Chunks()
}

// Aggregate concatenates response fragments in order and stops after the
// first chunk marked done, keeping that chunk's fragment. The result is
// trimmed.
func Aggregate(chunks iter.Seq[Chunk]) string {
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c.Response)
		if c.Done {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
