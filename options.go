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

import "path/filepath"

// Options is the immutable, fully-resolved configuration for one
// scheduler run. It is built once by the CLI layer (or a test) and
// never mutated once the pool starts, so workers can read it without
// synchronization.
type Options struct {
	CDBPath string
	Output  string
	Jobs    int

	CC     string
	CXX    string
	Efmer  string // external-definition mapper binary

	// Enabled built-in action keys, e.g. "syntax", "compile", "analyze".
	Actions map[string]bool

	Plugins []string // plugin descriptor file paths

	Strategy Strategy
	Metric   JobSizeMetric

	// Reducer output filenames, relative to Output unless absolute.
	ExternalDefMapFile string
	InvocationListFile string
	InputFileListFile  string
	SourceFileListFile string
	SFLPrefix          string

	// Unit filters.
	AllowList  map[string]bool // nil means "no filter"
	AllowGlobs []string        // doublestar patterns, OR'd with AllowList

	CTUUsesAST bool // -P form: rewrite extdef map values to <out>/<path>.ast

	MetricsAddr string
	Verbose     bool
}

// DefaultOptions returns an Options populated with this tool's default
// flag values. Paths are absolutized relative to the current directory.
func DefaultOptions() *Options {
	cdb, _ := filepath.Abs("./compile_commands.json")
	out, _ := filepath.Abs("./panda-output")
	return &Options{
		CDBPath:            cdb,
		Output:             out,
		Jobs:               1,
		CC:                 "clang",
		CXX:                "clang++",
		Efmer:              "clang-extdef-mapping",
		Actions:            make(map[string]bool),
		Strategy:           StrategyLJF,
		Metric:             MetricSemicolon,
		ExternalDefMapFile: "externalDefMap.txt",
		InvocationListFile: "invocations.yaml",
		InputFileListFile:  "inputs.ifl",
		SourceFileListFile: "source-files.txt",
	}
}

// resolvedReducerPath joins name onto Output unless name is already
// absolute.
func (o *Options) resolvedReducerPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Output, name)
}

// unitAllowed reports whether file passes the configured allow-list
// and/or allow-glob filters. With neither configured, everything passes.
func (o *Options) unitAllowed(file string) bool {
	if o.AllowList == nil && len(o.AllowGlobs) == 0 {
		return true
	}
	if o.AllowList != nil && o.AllowList[file] {
		return true
	}
	for _, pat := range o.AllowGlobs {
		if ok, _ := doublestarMatch(pat, file); ok {
			return true
		}
	}
	return false
}
