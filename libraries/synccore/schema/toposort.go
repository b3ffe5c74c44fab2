// Copyright 2025 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package schema

import "sort"

// TopoSort orders tables so that every table follows the tables it
// references, using Kahn's algorithm. Ties are broken alphabetically so the
// order is deterministic. Self references and references to tables not in
// the input are ignored. If a cycle remains, its members are appended in
// alphabetical order rather than failing; sqlite accepts out of order
// inserts for deferred or disabled constraint checking, so a best effort
// order is more useful than an error.
func TopoSort(tables []string, refs map[string][]string) []string {
	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	// dependents[r] = tables that reference r; indegree counts distinct
	// referenced tables
	dependents := make(map[string][]string)
	indegree := make(map[string]int, len(tables))
	for _, t := range tables {
		indegree[t] = 0
	}
	for _, t := range tables {
		seen := make(map[string]bool)
		for _, r := range refs[t] {
			if r == t || !inSet[r] || seen[r] {
				continue
			}
			seen[r] = true
			dependents[r] = append(dependents[r], t)
			indegree[t]++
		}
	}

	var ready []string
	for _, t := range tables {
		if indegree[t] == 0 {
			ready = append(ready, t)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(tables))
	for len(ready) > 0 {
		t := ready[0]
		ready = ready[1:]
		ordered = append(ordered, t)

		for _, d := range dependents[t] {
			indegree[d]--
			if indegree[d] == 0 {
				// insert keeping ready sorted
				i := sort.SearchStrings(ready, d)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = d
			}
		}
	}

	if len(ordered) < len(tables) {
		var residue []string
		placed := make(map[string]bool, len(ordered))
		for _, t := range ordered {
			placed[t] = true
		}
		for _, t := range tables {
			if !placed[t] {
				residue = append(residue, t)
			}
		}
		sort.Strings(residue)
		ordered = append(ordered, residue...)
	}

	return ordered
}
