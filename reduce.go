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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/ianlancetaylor/demangle"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// extdefEntry is one parsed line of a .extdef file.
type extdefEntry struct {
	USR  string
	Path string
}

// parseExtdefLine accepts both wire formats clang's external-definition
// mapper can emit: the length-prefixed "<len>:<usr><sep><path>" form
// (any single byte is accepted as the separator), and the legacy
// "<usr> <path>" form.
func parseExtdefLine(line string) (extdefEntry, error) {
	if i := strings.IndexByte(line, ':'); i >= 0 {
		if n, err := strconv.Atoi(line[:i]); err == nil {
			rest := line[i+1:]
			if n >= 0 && n+1 <= len(rest) {
				usr := rest[:n]
				path := rest[n+1:]
				return extdefEntry{USR: usr, Path: path}, nil
			}
		}
	}
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return extdefEntry{}, fmt.Errorf("malformed extdef line %q", line)
	}
	return extdefEntry{USR: parts[0], Path: parts[1]}, nil
}

func parseExtdefFile(path string) ([]extdefEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var entries []extdefEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		e, err := parseExtdefLine(line)
		if err != nil {
			glog.V(1).Infof("panda: %s: %v, skipping line", path, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// MergeExternalDefMap merges each unit's .extdef output into a single
// USR -> path map, written in first-seen order with later units
// overwriting earlier paths for a duplicate USR. When opts.CTUUsesAST
// is set, each value is rewritten to "<outputRoot><path>.ast".
func MergeExternalDefMap(units []*CompileCommand, opts *Options) error {
	ctx := context.Background()
	sem := semaphore.NewWeighted(int64(opts.Jobs))
	var g errgroup.Group
	var mu sync.Mutex
	perUnit := make([][]extdefEntry, len(units))

	for i, cc := range units {
		i, cc := i, cc
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			path := outputPath(opts.Output, cc, ".extdef")
			entries, err := parseExtdefFile(path)
			if err != nil {
				glog.Warningf("panda: extdef map: %s: %v, skipping", path, err)
				return nil
			}
			mu.Lock()
			perUnit[i] = entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	merged := make(map[string]string)
	var order []string
	for _, entries := range perUnit {
		for _, e := range entries {
			if _, seen := merged[e.USR]; !seen {
				order = append(order, e.USR)
			} else if opts.Verbose {
				glog.Infof("panda: extdef map: USR %s overwritten (%s)", demangle.Filter(e.USR), e.Path)
			}
			path := e.Path
			if opts.CTUUsesAST {
				path = opts.Output + path + ".ast"
			}
			merged[e.USR] = path
		}
	}

	out := opts.resolvedReducerPath(opts.ExternalDefMapFile)
	if err := ensureParentDir(out); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, usr := range order {
		fmt.Fprintf(w, "%s %s\n", usr, merged[usr])
	}
	return w.Flush()
}

// parseDepFile extracts the existing, resolved input files referenced
// by a Makefile-style .d dependency file: whitespace tokens, minus
// line-continuation backslashes and the rule-target token (ending ':').
func parseDepFile(path, dir string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, tok := range strings.Fields(string(data)) {
		tok = strings.TrimSuffix(tok, "\\")
		if tok == "" || strings.HasSuffix(tok, ":") {
			continue
		}
		abs, err := absClean(dir, tok)
		if err != nil {
			continue
		}
		if isRegularFile(abs) {
			files = append(files, abs)
		}
	}
	return files, nil
}

// SourceFileList aggregates every unit's .d output into a deduplicated,
// optionally prefix-filtered, sorted list of source files.
func SourceFileList(units []*CompileCommand, opts *Options) error {
	ctx := context.Background()
	sem := semaphore.NewWeighted(int64(opts.Jobs))
	var g errgroup.Group
	perUnit := make([][]string, len(units))

	for i, cc := range units {
		i, cc := i, cc
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			depPath := outputPath(opts.Output, cc, ".d")
			if !exists(depPath) {
				glog.Warningf("panda: source-file list: %s: missing .d output, re-run with dep generation enabled", cc.File)
				return nil
			}
			files, err := parseDepFile(depPath, cc.Directory)
			if err != nil {
				glog.Warningf("panda: source-file list: %s: %v", depPath, err)
				return nil
			}
			perUnit[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var all []string
	for _, files := range perUnit {
		for _, f := range files {
			if opts.SFLPrefix != "" && !strings.HasPrefix(f, opts.SFLPrefix) {
				continue
			}
			if !seen[f] {
				seen[f] = true
				all = append(all, f)
			}
		}
	}
	sort.Strings(all)

	out := opts.resolvedReducerPath(opts.SourceFileListFile)
	if err := ensureParentDir(out); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, s := range all {
		fmt.Fprintln(w, s)
	}
	return w.Flush()
}

type resourceDirResult struct {
	dir string
	err error
}

var (
	resourceDirMu    sync.Mutex
	resourceDirCache = make(map[string]resourceDirResult)
)

// clangResourceDir runs "<cc> -print-resource-dir" at most once per
// distinct compiler binary per process, since the answer is constant
// for a given compiler install.
func clangResourceDir(cc string) (string, error) {
	resourceDirMu.Lock()
	defer resourceDirMu.Unlock()
	if r, ok := resourceDirCache[cc]; ok {
		return r.dir, r.err
	}
	out, err := exec.Command(cc, "-print-resource-dir").Output()
	r := resourceDirResult{dir: strings.TrimSpace(string(out)), err: err}
	resourceDirCache[cc] = r
	return r.dir, r.err
}

// InvocationList emits one bare JSON mapping line per unit,
// { "<file>": [compiler, ...args, "-c", "-working-directory=<dir>",
// "-resource-dir=<R>"] }. The default filename carries a ".yaml"
// extension for historical reasons, but each line must parse as a
// standalone JSON object, so this reducer marshals with encoding/json
// rather than a YAML encoder. gopkg.in/yaml.v3 is used instead for the
// optional operator config file, see config.go.
func InvocationList(units []*CompileCommand, opts *Options) error {
	resourceDir, err := clangResourceDir(opts.CC)
	if err != nil {
		glog.Warningf("panda: invocation list: -print-resource-dir: %v", err)
	}

	out := opts.resolvedReducerPath(opts.InvocationListFile)
	if err := ensureParentDir(out); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	for _, cc := range units {
		argv := append([]string{cc.Compiler}, cc.Arguments...)
		argv = append(argv, "-c",
			"-working-directory="+cc.Directory,
			"-resource-dir="+resourceDir)

		line, err := json.Marshal(map[string][]string{cc.File: argv})
		if err != nil {
			return err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	return w.Flush()
}

// InputFileList writes one absolute source path per unit, in CDB order.
func InputFileList(units []*CompileCommand, opts *Options) error {
	out := opts.resolvedReducerPath(opts.InputFileListFile)
	if err := ensureParentDir(out); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, cc := range units {
		fmt.Fprintln(w, cc.File)
	}
	return w.Flush()
}
