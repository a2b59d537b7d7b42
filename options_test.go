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

func TestUnitAllowedNoFilter(t *testing.T) {
	opts := DefaultOptions()
	if !opts.unitAllowed("/tmp/anything.c") {
		t.Error("no filter configured: every unit should be allowed")
	}
}

func TestUnitAllowedList(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowList = map[string]bool{"/tmp/a.c": true}
	if !opts.unitAllowed("/tmp/a.c") {
		t.Error("listed unit should be allowed")
	}
	if opts.unitAllowed("/tmp/b.c") {
		t.Error("unlisted unit should not be allowed")
	}
}

func TestUnitAllowedGlob(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowGlobs = []string{"/tmp/src/**/*.cc"}
	if !opts.unitAllowed("/tmp/src/a/b/c.cc") {
		t.Error("unit matching allow-glob should be allowed")
	}
	if opts.unitAllowed("/tmp/other/c.cc") {
		t.Error("unit outside allow-glob should not be allowed")
	}
}

func TestResolvedReducerPath(t *testing.T) {
	opts := DefaultOptions()
	opts.Output = "/tmp/out"
	if got := opts.resolvedReducerPath("foo.txt"); got != "/tmp/out/foo.txt" {
		t.Errorf("resolvedReducerPath(relative) = %q, want /tmp/out/foo.txt", got)
	}
	if got := opts.resolvedReducerPath("/abs/foo.txt"); got != "/abs/foo.txt" {
		t.Errorf("resolvedReducerPath(absolute) = %q, want /abs/foo.txt", got)
	}
}
