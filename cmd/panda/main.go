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

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/urfave/cli/v2"

	"github.com/opencbt/panda"
)

func main() {
	defer glog.Flush()

	app := &cli.App{
		Name:  "panda",
		Usage: "replay a compilation database through configurable per-unit actions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "compilation-database", Aliases: []string{"f"}, Value: "./compile_commands.json"},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: 1},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "./panda-output"},

			&cli.BoolFlag{Name: "syntax", Aliases: []string{"X"}, Usage: "syntax-only check"},
			&cli.BoolFlag{Name: "compile", Aliases: []string{"C"}, Usage: "generate object files"},
			&cli.BoolFlag{Name: "preprocess", Aliases: []string{"E"}, Usage: "preprocess"},
			&cli.BoolFlag{Name: "ast", Aliases: []string{"A"}, Usage: "emit Clang AST"},
			&cli.BoolFlag{Name: "bitcode", Aliases: []string{"B"}, Usage: "emit LLVM bitcode"},
			&cli.BoolFlag{Name: "llvm-ir", Aliases: []string{"R"}, Usage: "emit LLVM IR"},
			&cli.BoolFlag{Name: "asm", Aliases: []string{"S"}, Usage: "emit assembly"},
			&cli.BoolFlag{Name: "dep", Aliases: []string{"D"}, Usage: "emit dependency (.d) files"},
			&cli.BoolFlag{Name: "extdef-map", Aliases: []string{"M"}, Usage: "map external definitions (source form)"},
			&cli.BoolFlag{Name: "extdef-map-ast", Aliases: []string{"P"}, Usage: "map external definitions (AST-loading form)"},
			&cli.BoolFlag{Name: "invocation-list", Aliases: []string{"Y"}, Usage: "emit invocation list"},
			&cli.BoolFlag{Name: "input-file-list", Aliases: []string{"L"}, Usage: "emit input file list"},
			&cli.BoolFlag{Name: "source-file-list", Aliases: []string{"F"}, Usage: "emit source file list"},
			&cli.BoolFlag{Name: "analyze", Usage: "run the Clang static analyzer"},

			&cli.BoolFlag{Name: "ctu-on-demand-parsing", Usage: "alias for -M -Y -L"},
			&cli.BoolFlag{Name: "ctu-loading-ast-files", Usage: "alias for -A -P -L"},

			&cli.StringSliceFlag{Name: "plugin", Usage: "load a plugin action descriptor"},

			&cli.StringFlag{Name: "cc", Value: "clang"},
			&cli.StringFlag{Name: "cxx", Value: "clang++"},
			&cli.StringFlag{Name: "efmer", Value: "clang-extdef-mapping"},

			&cli.StringFlag{Name: "efm", Value: "externalDefMap.txt", Usage: "external definition map output filename"},
			&cli.StringFlag{Name: "ivcl", Value: "invocations.yaml", Usage: "invocation list output filename"},
			&cli.StringFlag{Name: "ifl", Value: "inputs.ifl", Usage: "input file list output filename"},
			&cli.StringFlag{Name: "sfl", Value: "source-files.txt", Usage: "source file list output filename"},
			&cli.StringFlag{Name: "sfl-prefix", Usage: "only keep source-file-list entries under this prefix"},

			&cli.StringFlag{Name: "file-list", Usage: "file naming one allowed translation unit per line"},
			&cli.StringFlag{Name: "scheduler-strategy", Value: "ljf", Usage: "fifo, ljf, or sjf"},
			&cli.StringFlag{Name: "measure-job-size-with", Value: "semicolon", Usage: "loc, semicolon, or comma"},

			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},
			&cli.StringSliceFlag{Name: "allow-glob", Usage: "doublestar glob restricting which units run"},
			&cli.StringFlag{Name: "config", Usage: "optional YAML config file, overridden by explicit flags"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		glog.Exitf("panda: %v", err)
	}
}

func run(c *cli.Context) error {
	opts := panda.DefaultOptions()

	if cfgPath := c.String("config"); cfgPath != "" {
		if err := panda.LoadConfigFile(cfgPath, opts); err != nil {
			return fmt.Errorf("panda: config file: %w", err)
		}
	}

	cdb, err := filepath.Abs(c.String("compilation-database"))
	if err != nil {
		return err
	}
	output, err := filepath.Abs(c.String("output"))
	if err != nil {
		return err
	}
	opts.CDBPath = cdb
	opts.Output = output
	opts.Jobs = c.Int("jobs")
	if opts.Jobs <= 0 {
		return fmt.Errorf("panda: -j/--jobs must be positive, got %d", opts.Jobs)
	}
	if c.IsSet("cc") {
		opts.CC = c.String("cc")
	}
	if c.IsSet("cxx") {
		opts.CXX = c.String("cxx")
	}
	if c.IsSet("efmer") {
		opts.Efmer = c.String("efmer")
	}
	opts.ExternalDefMapFile = c.String("efm")
	opts.SFLPrefix = c.String("sfl-prefix")
	opts.MetricsAddr = c.String("metrics-addr")
	opts.AllowGlobs = c.StringSlice("allow-glob")
	opts.Verbose = c.Bool("verbose")
	if c.IsSet("plugin") {
		opts.Plugins = c.StringSlice("plugin")
	}

	if c.IsSet("scheduler-strategy") {
		switch panda.Strategy(c.String("scheduler-strategy")) {
		case panda.StrategyFIFO, panda.StrategyLJF, panda.StrategySJF:
			opts.Strategy = panda.Strategy(c.String("scheduler-strategy"))
		default:
			return fmt.Errorf("panda: unknown --scheduler-strategy %q", c.String("scheduler-strategy"))
		}
	}
	if c.IsSet("measure-job-size-with") {
		switch panda.JobSizeMetric(c.String("measure-job-size-with")) {
		case panda.MetricLOC, panda.MetricSemicolon, panda.MetricComma:
			opts.Metric = panda.JobSizeMetric(c.String("measure-job-size-with"))
		default:
			return fmt.Errorf("panda: unknown --measure-job-size-with %q", c.String("measure-job-size-with"))
		}
	}

	// --ctu-on-demand-parsing == -M -Y -L; --ctu-loading-ast-files == -A -P -L.
	onDemand := c.Bool("ctu-on-demand-parsing")
	astLoading := c.Bool("ctu-loading-ast-files")
	extdefSource := c.Bool("extdef-map") || onDemand
	extdefAST := c.Bool("extdef-map-ast") || astLoading
	if extdefSource && extdefAST {
		return fmt.Errorf("panda: -M (source form) and -P (AST-loading form) external-definition mapping are mutually exclusive")
	}
	opts.CTUUsesAST = extdefAST

	// Flags only override an action's enabled state when explicitly
	// passed, so a --config file's action list survives when the
	// corresponding flag is left at its default.
	if opts.Actions == nil {
		opts.Actions = make(map[string]bool)
	}
	actions := opts.Actions
	setAction := func(key string, isSet bool, value bool) {
		if isSet {
			actions[key] = value
		}
	}
	setAction("syntax", c.IsSet("syntax"), c.Bool("syntax"))
	setAction("compile", c.IsSet("compile"), c.Bool("compile"))
	setAction("preprocess", c.IsSet("preprocess"), c.Bool("preprocess"))
	setAction("ast", c.IsSet("ast") || c.IsSet("ctu-loading-ast-files"), c.Bool("ast") || astLoading)
	setAction("bitcode", c.IsSet("bitcode"), c.Bool("bitcode"))
	setAction("llvm-ir", c.IsSet("llvm-ir"), c.Bool("llvm-ir"))
	setAction("asm", c.IsSet("asm"), c.Bool("asm"))
	setAction("dep", c.IsSet("dep"), c.Bool("dep"))
	setAction("analyze", c.IsSet("analyze"), c.Bool("analyze"))
	setAction("extdef-map",
		c.IsSet("extdef-map") || c.IsSet("extdef-map-ast") || c.IsSet("ctu-on-demand-parsing") || c.IsSet("ctu-loading-ast-files"),
		extdefSource || extdefAST)
	for _, plugin := range opts.Plugins {
		actions[filepath.Base(plugin)] = true
	}
	opts.Actions = actions

	opts.InvocationListFile = ""
	if c.Bool("invocation-list") || onDemand {
		opts.InvocationListFile = c.String("ivcl")
	}
	opts.InputFileListFile = ""
	if c.Bool("input-file-list") || onDemand || astLoading {
		opts.InputFileListFile = c.String("ifl")
	}
	opts.SourceFileListFile = ""
	if c.Bool("source-file-list") {
		opts.SourceFileListFile = c.String("sfl")
	}

	if fileList := c.String("file-list"); fileList != "" {
		allow, err := readFileList(fileList)
		if err != nil {
			return fmt.Errorf("panda: --file-list: %w", err)
		}
		opts.AllowList = allow
	}
	if c.Args().Len() > 0 {
		if opts.AllowList == nil {
			opts.AllowList = make(map[string]bool)
		}
		for _, arg := range c.Args().Slice() {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return err
			}
			opts.AllowList[abs] = true
		}
	}

	return panda.Run(opts)
}

// readFileList reads a newline-delimited list of allowed translation
// unit paths, absolutizing each relative to the current directory.
func readFileList(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	allow := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		abs, err := filepath.Abs(line)
		if err != nil {
			return nil, err
		}
		allow[abs] = true
	}
	return allow, sc.Err()
}
