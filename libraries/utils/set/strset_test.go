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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrSetBasics(t *testing.T) {
	s := NewStrSet([]string{"users", "posts", "users"})
	assert.Equal(t, 2, s.Size())
	assert.True(t, s.Contains("users"))
	assert.False(t, s.Contains("comments"))

	s.Add("comments")
	assert.True(t, s.ContainsAll([]string{"users", "posts", "comments"}))

	s.Remove("posts")
	assert.False(t, s.Contains("posts"))
	assert.Equal(t, []string{"comments", "users"}, s.AsSortedSlice())
	assert.Equal(t, "comments,users", s.JoinStrings(","))
}

func TestStrSetNilReceiver(t *testing.T) {
	var s *StrSet
	assert.False(t, s.Contains("anything"))
	assert.True(t, s.ContainsAll(nil))
	assert.Zero(t, s.Size())
	assert.Nil(t, s.AsSlice())
	s.Iterate(func(string) bool {
		t.Fatal("nil set iterated")
		return false
	})
}

func TestStrSetIterate(t *testing.T) {
	s := NewStrSet([]string{"a", "b", "c"})
	seen := 0
	s.Iterate(func(string) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}
