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

package set

import (
	"sort"
	"strings"
)

var emptyInstance = struct{}{}

// StrSet is a simple set implementation providing standard set operations
// for strings. A nil *StrSet behaves as an empty set for read operations.
type StrSet struct {
	items map[string]interface{}
}

// NewStrSet creates a set from a list of strings.
func NewStrSet(items []string) *StrSet {
	s := &StrSet{make(map[string]interface{}, len(items))}
	for _, item := range items {
		s.items[item] = emptyInstance
	}
	return s
}

// Add adds new items to the set.
func (s *StrSet) Add(items ...string) {
	for _, item := range items {
		s.items[item] = emptyInstance
	}
}

// Remove removes existing items from the set.
func (s *StrSet) Remove(items ...string) {
	for _, item := range items {
		delete(s.items, item)
	}
}

// Contains returns true if the item being checked is already in the set.
func (s *StrSet) Contains(item string) bool {
	if s == nil {
		return false
	}
	_, present := s.items[item]
	return present
}

// ContainsAll returns true if all the items being checked are already in the
// set.
func (s *StrSet) ContainsAll(items []string) bool {
	if s == nil {
		return len(items) == 0
	}
	for _, item := range items {
		if _, present := s.items[item]; !present {
			return false
		}
	}
	return true
}

// Size returns the number of unique elements in the set.
func (s *StrSet) Size() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// AsSlice converts the set to a slice in no particular order.
func (s *StrSet) AsSlice() []string {
	if s == nil {
		return nil
	}
	sl := make([]string, 0, len(s.items))
	for item := range s.items {
		sl = append(sl, item)
	}
	return sl
}

// AsSortedSlice converts the set to a sorted slice.
func (s *StrSet) AsSortedSlice() []string {
	sl := s.AsSlice()
	sort.Strings(sl)
	return sl
}

// Iterate calls the callback once per item until the items are exhausted or
// the callback returns false.
func (s *StrSet) Iterate(callBack func(string) (cont bool)) {
	if s == nil {
		return
	}
	for item := range s.items {
		if !callBack(item) {
			break
		}
	}
}

// JoinStrings joins the sorted items with a separator.
func (s *StrSet) JoinStrings(sep string) string {
	return strings.Join(s.AsSortedSlice(), sep)
}
