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

import "testing"

func TestDoublestarMatch(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/src/**/*.cc", "/src/a/b/c.cc", true},
		{"/src/**/*.cc", "/other/c.cc", false},
		{"/src/*.c", "/src/main.c", true},
		{"/src/*.c", "/src/sub/main.c", false},
	} {
		got, err := doublestarMatch(tc.pattern, tc.path)
		if err != nil {
			t.Errorf("doublestarMatch(%q, %q): %v", tc.pattern, tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("doublestarMatch(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
