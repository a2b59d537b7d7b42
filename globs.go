// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package panda

import "github.com/bmatcuk/doublestar/v4"

// doublestarMatch matches an absolute source path against a doublestar
// glob pattern, supplementing the literal --file-list / positional
// allow-list with "**" patterns for whole subtrees.
func doublestarMatch(pattern, path string) (bool, error) {
	return doublestar.Match(pattern, path)
}
