// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlstore

import "testing"

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"

	plain := &Store{dialect: Dialect{}}
	if got := plain.rebind(q); got != q {
		t.Errorf("rebind without numbering changed the query: %q", got)
	}

	numbered := &Store{dialect: Dialect{Numbered: true}}
	if got, want := numbered.rebind(q), "INSERT INTO t (a, b) VALUES ($1, $2)"; got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
}
