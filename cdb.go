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
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
)

// Language is the inferred or overridden source language of a
// translation unit.
type Language string

// Languages recognized by the normalizer.
const (
	LangC       Language = "c"
	LangCXX     Language = "c++"
	LangUnknown Language = "unknown"
)

// CompileCommand is one normalized, replay-ready translation unit.
type CompileCommand struct {
	Directory string
	File      string
	Language  Language
	Compiler  string
	Arguments []string
}

// rawEntry is a single CDB object, as found in compile_commands.json.
type rawEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
}

var extLanguages = map[string]Language{
	".c":   LangC,
	".C":   LangCXX,
	".cc":  LangCXX,
	".CC":  LangCXX,
	".cp":  LangCXX,
	".cpp": LangCXX,
	".CPP": LangCXX,
	".cxx": LangCXX,
	".CXX": LangCXX,
	".c++": LangCXX,
	".C++": LangCXX,
}

// inferLanguage infers a translation unit's language from its file
// extension.
func inferLanguage(file string) Language {
	ext := filepath.Ext(file)
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return LangUnknown
}

// prunedPrefixes are the two-character prefixes that cause a token to
// be dropped outright (the prefix test also matches e.g. -Wall, -MD, -g3).
var prunedPrefixes = []string{"-M", "-W", "-g"}

var prunedSingletons = map[string]bool{
	"-c":            true,
	"-fsyntax-only": true,
	"-save-temps":   true,
}

var prunedWithArg = map[string]bool{
	"-o":  true,
	"-MF": true,
	"-MT": true,
	"-MQ": true,
	"-MJ": true,
}

// prune removes build-specific flags from argv so the remainder can be
// safely re-prefixed with a replay compiler and extra action args. It is
// idempotent: pruning an already-pruned argv is a no-op.
func prune(argv []string) []string {
	var out []string
	for i := 0; i < len(argv); i++ {
		tok := argv[i]
		if prunedSingletons[tok] {
			continue
		}
		if prunedWithArg[tok] {
			i++ // also drop the following token
			continue
		}
		if strings.HasPrefix(tok, "-o=") {
			continue
		}
		pruned := false
		for _, p := range prunedPrefixes {
			if len(tok) >= 2 && tok[:2] == p {
				pruned = true
				break
			}
		}
		if pruned {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// scanLanguageOverride looks for -x LANG or -xLANG in argv and returns
// the last override found, if any. It does not validate LANG.
func scanLanguageOverride(argv []string) (Language, bool) {
	var lang Language
	found := false
	for i := 0; i < len(argv); i++ {
		tok := argv[i]
		switch {
		case tok == "-x" && i+1 < len(argv):
			lang = Language(argv[i+1])
			found = true
			i++
		case strings.HasPrefix(tok, "-x") && len(tok) > 2:
			lang = Language(tok[2:])
			found = true
		}
	}
	return lang, found
}

// ErrInvalidEntry is returned (wrapped) by Normalize when a CDB entry is
// missing a required field.
var ErrInvalidEntry = fmt.Errorf("invalid compilation database entry")

// Normalize converts one raw CDB entry into a replay-ready
// CompileCommand. It returns (nil, err) with err wrapping ErrInvalidEntry
// when a required field is missing; callers should warn and skip.
func Normalize(raw json.RawMessage) (*CompileCommand, error) {
	var e rawEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.File == "" || e.Directory == "" || (e.Command == "" && len(e.Arguments) == 0) {
		return nil, fmt.Errorf("%w: missing file/directory/command(arguments)", ErrInvalidEntry)
	}

	var argv []string
	var err error
	if len(e.Arguments) > 0 {
		argv = e.Arguments
	} else {
		argv, err = shellSplit(e.Command)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidEntry)
	}

	dir, err := filepath.Abs(e.Directory)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	file, err := absClean(dir, e.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	lang := inferLanguage(file)
	if override, ok := scanLanguageOverride(argv[1:]); ok {
		lang = override
	}

	cc := &CompileCommand{
		Directory: dir,
		File:      file,
		Language:  lang,
		Compiler:  argv[0],
		Arguments: prune(argv[1:]),
	}
	if cc.Language == LangUnknown {
		glog.Warningf("panda: %s: unknown language, skipping", cc.File)
	}
	return cc, nil
}

// StreamCDB decodes a JSON array of CDB entries from r, calling fn once
// per entry in document order. fn receives the raw entry so the caller
// can Normalize it and decide whether to enqueue work; this lets the
// driver fan work out while still streaming the file rather than
// buffering the fully decoded array.
func StreamCDB(r io.Reader, fn func(json.RawMessage) error) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("panda: reading compilation database: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("panda: compilation database is not a JSON array")
	}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("panda: decoding compilation database entry: %w", err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return nil
}
