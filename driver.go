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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// builtinOrder fixes the order built-in actions are reported in verbose
// summaries; map iteration order would otherwise vary run to run.
var builtinOrder = []string{
	"syntax", "compile", "preprocess", "ast", "bitcode",
	"llvm-ir", "asm", "dep", "analyze", "extdef-map",
}

// Run executes one full scheduler pass over opts.CDBPath: it streams and
// normalizes the compilation database, fans enabled per-unit actions out
// across a worker pool sized at opts.Jobs, then runs the whole-project
// reducers once every worker has drained.
func Run(opts *Options) error {
	runID := uuid.New()
	start := time.Now()

	catalog := BuiltinCatalog(opts.Output, opts.Verbose)
	if opts.Efmer != "" {
		extdef := catalog["extdef-map"]
		extdef.SingletonTool = opts.Efmer
	}

	plugins, err := LoadPlugins(opts.Plugins)
	if err != nil {
		return err
	}
	for _, p := range plugins {
		catalog[p.Key] = p
	}

	var enabled []*ActionDescriptor
	for _, key := range builtinOrder {
		if opts.Actions[key] {
			enabled = append(enabled, catalog[key])
		}
	}
	for _, p := range plugins {
		if opts.Actions[p.Key] {
			enabled = append(enabled, p)
		}
	}

	if opts.Verbose {
		var keys []string
		for _, a := range enabled {
			keys = append(keys, a.Key)
		}
		glog.Infof("panda: enabled actions: %v", keys)
	}

	var metrics *Metrics
	if opts.MetricsAddr != "" {
		metrics = NewMetrics()
		closeMetrics, err := metrics.ServeHTTP(opts.MetricsAddr)
		if err != nil {
			return fmt.Errorf("panda: metrics: %w", err)
		}
		defer closeMetrics()
	}

	stats := newSizeStats()
	est := NewEstimator(opts.Metric)
	sizeFn := est
	if opts.Verbose {
		sizeFn = func(file string) int {
			size := est(file)
			stats.observe(size)
			return size
		}
	}
	wl := NewWorklist(opts.Strategy, sizeFn)
	pool := NewPool(opts.Jobs, wl, metrics)

	stopForwarding := forwardTerminationSignals()
	defer stopForwarding()

	f, err := os.Open(opts.CDBPath)
	if err != nil {
		return fmt.Errorf("panda: opening compilation database: %w", err)
	}
	defer f.Close()

	var units []*CompileCommand
	err = StreamCDB(f, func(raw json.RawMessage) error {
		cc, err := Normalize(raw)
		if err != nil {
			glog.Warningf("panda: skipping invalid entry: %v", err)
			return nil
		}
		if cc.Language == LangUnknown {
			return nil // Normalize has already logged the skip
		}
		if !opts.unitAllowed(cc.File) {
			return nil
		}
		units = append(units, cc)
		for _, act := range enabled {
			act := act
			cc := cc
			if act.Integrated {
				pool.AddTask(func() error { return CompilerAction(opts, cc, act) }, cc.File)
			} else {
				tool := act
				pool.AddTask(func() error { return ToolAction(opts, cc, tool, runID) }, cc.File)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Whole-CDB reducers that need no per-unit output run concurrently
	// with the per-unit fan-out, since they only read the normalized
	// unit list already gathered above.
	if opts.InvocationListFile != "" {
		pool.AddReducer(func() error { return InvocationList(units, opts) })
	}
	if opts.InputFileListFile != "" {
		pool.AddReducer(func() error { return InputFileList(units, opts) })
	}

	pool.Join()

	// Reducers that depend on per-unit action output (.extdef, .d files)
	// must run after every worker has drained, so they run sequentially
	// here rather than through the pool.
	if opts.Actions["extdef-map"] {
		if err := MergeExternalDefMap(units, opts); err != nil {
			glog.Warningf("panda: external definition map: %v", err)
		}
	}
	if opts.SourceFileListFile != "" {
		if err := SourceFileList(units, opts); err != nil {
			glog.Warningf("panda: source file list: %v", err)
		}
	}

	if opts.Verbose {
		stats.logSummary(opts.Metric)
	}
	glog.Infof("panda: %d units processed in %.3fs", len(units), time.Since(start).Seconds())
	return nil
}

// forwardTerminationSignals arranges for SIGINT and SIGTERM received by
// this process to be forwarded to every subprocess's process group, so a
// Ctrl-C during a run kills in-flight compiler invocations instead of
// orphaning them. The returned func stops forwarding and should be
// deferred by the caller.
func forwardTerminationSignals() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			pgid, err := unix.Getpgid(0)
			if err != nil {
				glog.Warningf("panda: received %v, could not resolve process group: %v", sig, err)
				return
			}
			glog.Warningf("panda: received %v, forwarding to process group %d", sig, pgid)
			if err := unix.Kill(-pgid, sig.(syscall.Signal)); err != nil {
				glog.Warningf("panda: forwarding %v to process group %d: %v", sig, pgid, err)
			}
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
