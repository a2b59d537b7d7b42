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
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

// substituteOutputRoot rewrites the literal substring "/path/to/output"
// in each argv token to root. The substitution happens here, at
// execution time, never at catalog- or plugin-load time, so a single
// frozen ActionDescriptor can be shared by every worker regardless of
// which run's output root is in effect.
func substituteOutputRoot(args []string, root string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, "/path/to/output", root)
	}
	return out
}

func outputPath(root string, cc *CompileCommand, ext string) string {
	return root + cc.File + ext
}

func setpgid(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		if ws, ok := ee.ProcessState.Sys().(syscall.WaitStatus); ok {
			return ws.ExitStatus()
		}
	}
	return 1
}

// CompilerAction replays cc through the compiler with act's extra
// arguments appended. A non-zero exit status is logged, never returned
// as a fatal error: the scheduler must keep going.
func CompilerAction(opts *Options, cc *CompileCommand, act *ActionDescriptor) error {
	compiler := opts.CC
	if cc.Language == LangCXX {
		compiler = opts.CXX
	}
	if act.Tool != nil {
		if cc.Language == LangCXX {
			compiler = act.Tool.CXX
		} else {
			compiler = act.Tool.C
		}
	}

	argv := []string{compiler}
	argv = append(argv, cc.Arguments...)
	argv = append(argv, substituteOutputRoot(act.ExtraArgs, opts.Output)...)

	var out string
	if act.OutputOpt != "" {
		ext := act.OutputExt.forLanguage(cc.Language)
		out = outputPath(opts.Output, cc, ext)
		if err := ensureParentDir(out); err != nil {
			return fmt.Errorf("panda: %s: %w", act.Prompt, err)
		}
		argv = append(argv, act.OutputOpt, out)
	}

	if glog.V(1) {
		glog.Infof("panda: [%s] %s: %s", act.Prompt, cc.File, strings.Join(argv, " "))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cc.Directory
	setpgid(cmd)
	out2, err := cmd.CombinedOutput()
	if len(out2) > 0 {
		os.Stdout.Write(out2)
	}
	if err != nil {
		return fmt.Errorf("panda: [%s] %s: exit %d", act.Prompt, cc.File, exitStatus(err))
	}
	return nil
}

// ToolAction invokes act's standalone tool, handing it cc's replay argv
// after a literal "--" separator. When act captures a stream, the
// captured bytes are staged to a run-scoped temporary file and renamed
// into place, so concurrent workers never observe a partially-written
// final output path.
func ToolAction(opts *Options, cc *CompileCommand, act *ActionDescriptor, runID uuid.UUID) error {
	argv := []string{act.SingletonTool, cc.File}
	argv = append(argv, substituteOutputRoot(act.ExtraArgs, opts.Output)...)
	argv = append(argv, "--", "-w")
	argv = append(argv, cc.Arguments...)

	if glog.V(1) {
		glog.Infof("panda: [%s] %s: %s", act.Prompt, cc.File, strings.Join(argv, " "))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cc.Directory
	setpgid(cmd)

	var captured bytes.Buffer
	switch act.CaptureStream {
	case CaptureStdout:
		cmd.Stdout = &captured
	case CaptureStderr:
		cmd.Stderr = &captured
	}

	runErr := cmd.Run()
	if runErr != nil {
		runErr = fmt.Errorf("panda: [%s] %s: exit %d", act.Prompt, cc.File, exitStatus(runErr))
	}

	ext := act.OutputExt.forLanguage(cc.Language)
	if ext == "" {
		return runErr
	}
	final := outputPath(opts.Output, cc, ext)
	if err := ensureParentDir(final); err != nil {
		return fmt.Errorf("panda: %s: %w", act.Prompt, err)
	}
	tmp := final + fmt.Sprintf(".tmp-%s", runID)
	if err := os.WriteFile(tmp, captured.Bytes(), 0644); err != nil {
		return fmt.Errorf("panda: %s: writing capture: %w", act.Prompt, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("panda: %s: staging capture: %w", act.Prompt, err)
	}
	return runErr
}
