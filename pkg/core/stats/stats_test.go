// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package stats

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestStats_Counters(t *testing.T) {
	var s Stats
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncTotalRequests()
			s.IncLookupAttempts()
		}()
	}
	wg.Wait()
	s.IncCacheHits()
	s.IncPreferredDomainMatches()

	got := s.Snapshot()
	want := Snapshot{TotalRequests: 100, LookupAttempts: 100, PreferredDomainMatches: 1, CacheHits: 1}
	if got != want {
		t.Errorf("Snapshot = %+v, want %+v", got, want)
	}
}

func TestSnapshot_JSONNames(t *testing.T) {
	b, err := json.Marshal(Snapshot{TotalRequests: 1})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]uint64
	json.Unmarshal(b, &m)
	for _, k := range []string{"total_requests", "lookup_attempts", "preferred_domain_matches", "cache_hits"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing JSON field %q in %s", k, b)
		}
	}
}
