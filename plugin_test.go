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
	"os"
	"path/filepath"
	"testing"
)

func writePlugin(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPluginsIntegrated(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "count-lines.json", `{
		"type": "Integrated",
		"action": {
			"prompt": "count lines",
			"args": ["-fsyntax-only"],
			"extension": ".lines",
			"outopt": "-o"
		}
	}`)

	descs, err := LoadPlugins([]string{path})
	if err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(descs))
	}
	d := descs[0]
	if !d.Integrated {
		t.Error("expected an Integrated action")
	}
	if d.OutputExt.C != ".lines" {
		t.Errorf("OutputExt.C = %q, want .lines", d.OutputExt.C)
	}
}

func TestLoadPluginsSingletonRequiresSourceWithExtension(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "bad.json", `{
		"type": "Singleton",
		"action": {
			"prompt": "bad plugin",
			"tool": "my-tool",
			"extension": ".out"
		}
	}`)
	if _, err := LoadPlugins([]string{path}); err == nil {
		t.Error("expected an error: Singleton action with extension but no source")
	}
}

func TestLoadPluginsSingletonWithStdoutCapture(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "good.json", `{
		"type": "Singleton",
		"action": {
			"prompt": "custom tool",
			"tool": "my-tool",
			"extension": ".out",
			"source": "stdout"
		}
	}`)
	descs, err := LoadPlugins([]string{path})
	if err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
	if descs[0].SingletonTool != "my-tool" {
		t.Errorf("SingletonTool = %q, want my-tool", descs[0].SingletonTool)
	}
	if descs[0].CaptureStream != CaptureStdout {
		t.Errorf("CaptureStream = %q, want stdout", descs[0].CaptureStream)
	}
}

func TestLoadPluginsRejectsInvalidSchema(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "invalid.json", `{"type": "Bogus", "action": {"prompt": "x"}}`)
	if _, err := LoadPlugins([]string{path}); err == nil {
		t.Error("expected schema validation error for unknown plugin type")
	}
}

func TestLoadPluginsDedupesByPath(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "dup.json", `{
		"type": "Integrated",
		"action": {"prompt": "dup", "args": []}
	}`)
	descs, err := LoadPlugins([]string{path, path})
	if err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
	if len(descs) != 1 {
		t.Errorf("got %d descriptors for a duplicated path, want 1", len(descs))
	}
}
