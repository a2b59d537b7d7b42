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

import (
	"reflect"
	"testing"
)

func TestShellSplit(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{
			in:   "g++ -Wall -c -o main.o main.cc",
			want: []string{"g++", "-Wall", "-c", "-o", "main.o", "main.cc"},
		},
		{
			in:   `cc -DFOO="bar baz" main.c`,
			want: []string{"cc", "-DFOO=bar baz", "main.c"},
		},
		{
			in:   `cc -DFOO='bar $baz' main.c`,
			want: []string{"cc", "-DFOO=bar $baz", "main.c"},
		},
		{
			in:   `cc main.c  `,
			want: []string{"cc", "main.c"},
		},
	} {
		got, err := shellSplit(tc.in)
		if err != nil {
			t.Errorf("shellSplit(%q) error: %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("shellSplit(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShellSplitUnterminatedQuote(t *testing.T) {
	if _, err := shellSplit(`cc -DFOO="bar`); err == nil {
		t.Error("expected an error for an unterminated double quote")
	}
}
