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

// CaptureStream names which standard stream a Singleton action captures.
type CaptureStream string

// Recognized capture streams.
const (
	CaptureNone   CaptureStream = ""
	CaptureStdout CaptureStream = "stdout"
	CaptureStderr CaptureStream = "stderr"
)

// ToolOverride pins an action's binary per language, overriding the
// configured default compiler.
type ToolOverride struct {
	C   string
	CXX string
}

// outputExt names the file extension an Integrated action produces; C
// and C++ may differ (e.g. preprocess emits .i for C, .ii for C++).
type outputExt struct {
	C   string
	CXX string
}

func sameExt(ext string) outputExt { return outputExt{C: ext, CXX: ext} }

func (e outputExt) forLanguage(lang Language) string {
	if lang == LangCXX {
		return e.CXX
	}
	return e.C
}

// ActionDescriptor is a tagged variant over the two per-unit action
// shapes: Integrated (compiler-driven) and Singleton (standalone tool).
type ActionDescriptor struct {
	Key    string
	Prompt string

	// Integrated fields.
	Integrated bool
	ExtraArgs  []string
	OutputOpt  string // default "-o"; empty iff the action writes no file
	OutputExt  outputExt
	Tool       *ToolOverride

	// Singleton fields.
	SingletonTool string
	CaptureStream CaptureStream
}

// producesFile reports whether this action writes an output file.
func (a *ActionDescriptor) producesFile() bool {
	if a.Integrated {
		return a.OutputOpt != ""
	}
	return a.OutputExt.C != "" || a.OutputExt.CXX != ""
}

// BuiltinCatalog returns the built-in Integrated and Singleton action
// descriptors, parameterized by the resolved output root and verbosity.
// The analyzer action's argv is assembled here and frozen; callers must
// not mutate it afterward, since the same catalog is shared read-only
// across every worker goroutine.
func BuiltinCatalog(outputRoot string, verbose bool) map[string]*ActionDescriptor {
	analyzerArgs := []string{
		"--analyze",
		"-Xanalyzer", "-analyzer-output=html",
		"-Xanalyzer", "-analyzer-disable-checker=deadcode",
		"-o", outputRoot + "/csa-reports",
	}
	if verbose {
		analyzerArgs = append(analyzerArgs, "-Xanalyzer", "-analyzer-display-progress")
	}

	cat := map[string]*ActionDescriptor{
		"syntax": {
			Key: "syntax", Prompt: "check syntax", Integrated: true,
			ExtraArgs: []string{"-fsyntax-only", "-Wall"},
		},
		"compile": {
			Key: "compile", Prompt: "generate object", Integrated: true,
			ExtraArgs: []string{"-c", "-w"},
			OutputOpt: "-o", OutputExt: sameExt(".o"),
		},
		"preprocess": {
			Key: "preprocess", Prompt: "preprocess", Integrated: true,
			ExtraArgs: []string{"-E"},
			OutputOpt: "-o", OutputExt: outputExt{C: ".i", CXX: ".ii"},
		},
		"ast": {
			Key: "ast", Prompt: "emit AST", Integrated: true,
			ExtraArgs: []string{"-emit-ast", "-w"},
			OutputOpt: "-o", OutputExt: sameExt(".ast"),
		},
		"bitcode": {
			Key: "bitcode", Prompt: "emit bitcode", Integrated: true,
			ExtraArgs: []string{"-c", "-emit-llvm", "-w"},
			OutputOpt: "-o", OutputExt: sameExt(".bc"),
		},
		"llvm-ir": {
			Key: "llvm-ir", Prompt: "emit LLVM IR", Integrated: true,
			ExtraArgs: []string{"-c", "-emit-llvm", "-S", "-w"},
			OutputOpt: "-o", OutputExt: sameExt(".ll"),
		},
		"asm": {
			Key: "asm", Prompt: "emit assembly", Integrated: true,
			ExtraArgs: []string{"-S", "-w"},
			OutputOpt: "-o", OutputExt: sameExt(".s"),
		},
		"dep": {
			Key: "dep", Prompt: "emit dependency", Integrated: true,
			ExtraArgs: []string{"-fsyntax-only", "-w", "-M"},
			OutputOpt: "-MF", OutputExt: sameExt(".d"),
		},
		"analyze": {
			Key: "analyze", Prompt: "run static analyzer", Integrated: true,
			ExtraArgs: analyzerArgs,
		},
		"extdef-map": {
			Key: "extdef-map", Prompt: "map external definitions",
			Integrated: false, SingletonTool: "", // set by caller via configured binary
			OutputExt:     sameExt(".extdef"),
			CaptureStream: CaptureStdout,
		},
	}
	return cat
}
