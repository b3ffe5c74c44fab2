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

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterNames(t *testing.T) {
	names := []string{"users", "posts", "tags"}

	assert.Equal(t, names, filterNames(names, nil, nil))
	assert.Equal(t, []string{"posts"}, filterNames(names, []string{"posts"}, nil))
	assert.Equal(t, []string{"users", "tags"}, filterNames(names, nil, []string{"posts"}))

	// exclusion wins over inclusion
	assert.Empty(t, filterNames(names, []string{"posts"}, []string{"posts"}))

	assert.Empty(t, filterNames(names, []string{"not_there"}, nil))
	assert.Empty(t, filterNames(nil, nil, nil))
}
