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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// TestParseExtdefLineBothForms is testable property 6: the
// length-prefixed and legacy wire forms parse to the same entry.
func TestParseExtdefLineBothForms(t *testing.T) {
	usr := "c:@F@foo#"
	path := "/tmp/build/foo.cc"
	legacy := fmt.Sprintf("%s %s", usr, path)
	prefixed := fmt.Sprintf("%d:%s %s", len(usr), usr, path)
	anySep := fmt.Sprintf("%d:%s|%s", len(usr), usr, path)

	for _, line := range []string{legacy, prefixed, anySep} {
		e, err := parseExtdefLine(line)
		if err != nil {
			t.Errorf("parseExtdefLine(%q): %v", line, err)
			continue
		}
		if e.USR != usr || e.Path != path {
			t.Errorf("parseExtdefLine(%q) = %+v, want USR=%q Path=%q", line, e, usr, path)
		}
	}
}

func TestParseExtdefLineMalformed(t *testing.T) {
	if _, err := parseExtdefLine("garbage-with-no-separator"); err == nil {
		t.Error("expected an error for a line with no separator")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestMergeExternalDefMapASTRewrite is testable property 7: with
// CTUUsesAST set, merged paths are rewritten under the output root with
// an ".ast" suffix.
func TestMergeExternalDefMapASTRewrite(t *testing.T) {
	outDir := t.TempDir()
	srcDir := t.TempDir()

	cc := &CompileCommand{Directory: srcDir, File: filepath.Join(srcDir, "foo.cc"), Language: LangCXX}
	extdefPath := outputPath(outDir, cc, ".extdef")
	mustWrite(t, extdefPath, "c:@F@foo# "+cc.File+"\n")

	opts := DefaultOptions()
	opts.Output = outDir
	opts.Jobs = 2
	opts.CTUUsesAST = true
	opts.ExternalDefMapFile = "externalDefMap.txt"

	if err := MergeExternalDefMap([]*CompileCommand{cc}, opts); err != nil {
		t.Fatalf("MergeExternalDefMap: %v", err)
	}

	data, err := os.ReadFile(opts.resolvedReducerPath(opts.ExternalDefMapFile))
	if err != nil {
		t.Fatal(err)
	}
	want := outDir + cc.File + ".ast"
	if !strings.Contains(string(data), want) {
		t.Errorf("merged map %q does not contain AST-rewritten path %q", data, want)
	}
}

// TestSourceFileListFilterAndDedup is testable property 8.
func TestSourceFileListFilterAndDedup(t *testing.T) {
	outDir := t.TempDir()
	srcDir := t.TempDir()

	keepHeader := filepath.Join(srcDir, "keep", "a.h")
	dropHeader := filepath.Join(srcDir, "drop", "b.h")
	mustWrite(t, keepHeader, "")
	mustWrite(t, dropHeader, "")

	ccA := &CompileCommand{Directory: srcDir, File: filepath.Join(srcDir, "a.cc")}
	ccB := &CompileCommand{Directory: srcDir, File: filepath.Join(srcDir, "b.cc")}
	mustWrite(t, outputPath(outDir, ccA, ".d"), fmt.Sprintf("a.o: %s %s\n", keepHeader, dropHeader))
	mustWrite(t, outputPath(outDir, ccB, ".d"), fmt.Sprintf("b.o: %s\n", keepHeader))

	opts := DefaultOptions()
	opts.Output = outDir
	opts.Jobs = 2
	opts.SFLPrefix = filepath.Join(srcDir, "keep")
	opts.SourceFileListFile = "source-files.txt"

	if err := SourceFileList([]*CompileCommand{ccA, ccB}, opts); err != nil {
		t.Fatalf("SourceFileList: %v", err)
	}

	f, err := os.Open(opts.resolvedReducerPath(opts.SourceFileListFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 1 || lines[0] != keepHeader {
		t.Errorf("source file list = %v, want [%s] (deduped, prefix-filtered)", lines, keepHeader)
	}
	if !sort.StringsAreSorted(lines) {
		t.Errorf("source file list %v is not sorted", lines)
	}
}

// TestInvocationListIsLineDelimitedJSON is testable property / scenario
// S5: each line of the invocation list must parse as a standalone JSON
// object mapping the unit's file to its replay argv.
func TestInvocationListIsLineDelimitedJSON(t *testing.T) {
	outDir := t.TempDir()
	cc := &CompileCommand{
		Directory: "/tmp/build",
		File:      "/tmp/build/main.c",
		Language:  LangC,
		Compiler:  "cc",
		Arguments: []string{"-Isomething"},
	}

	opts := DefaultOptions()
	opts.Output = outDir
	opts.CC = "true" // a binary guaranteed to exist and exit 0, queried for -print-resource-dir only
	opts.InvocationListFile = "invocations.yaml"

	if err := InvocationList([]*CompileCommand{cc}, opts); err != nil {
		t.Fatalf("InvocationList: %v", err)
	}

	data, err := os.ReadFile(opts.resolvedReducerPath(opts.InvocationListFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if !strings.HasPrefix(lines[0], "{") || !strings.HasSuffix(lines[0], "}") {
		t.Errorf("invocation list line %q is not a bare JSON object", lines[0])
	}
	if !strings.Contains(lines[0], cc.File) {
		t.Errorf("invocation list line %q does not mention unit file %q", lines[0], cc.File)
	}
}

// TestInputFileListOrder confirms the input file list preserves CDB
// document order rather than sorting.
func TestInputFileListOrder(t *testing.T) {
	outDir := t.TempDir()
	units := []*CompileCommand{
		{File: "/tmp/b.c"},
		{File: "/tmp/a.c"},
	}
	opts := DefaultOptions()
	opts.Output = outDir
	opts.InputFileListFile = "inputs.ifl"

	if err := InputFileList(units, opts); err != nil {
		t.Fatalf("InputFileList: %v", err)
	}
	data, err := os.ReadFile(opts.resolvedReducerPath(opts.InputFileListFile))
	if err != nil {
		t.Fatal(err)
	}
	want := "/tmp/b.c\n/tmp/a.c\n"
	if string(data) != want {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(want, string(data), false)
		t.Errorf("input file list mismatch:\n%s", dmp.DiffPrettyText(diffs))
	}
}
