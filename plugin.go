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
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/glog"
	"github.com/google/jsonschema-go/jsonschema"
)

// pluginSchema describes the two action shapes accepted in a plugin
// file. Structural errors are rejected here with a precise validation
// error before we ever try to unmarshal into Go structs.
var pluginSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"type", "action"},
	Properties: map[string]*jsonschema.Schema{
		"comment": {Type: "string"},
		"type":    {Type: "string", Enum: []any{"Integrated", "Singleton"}},
		"action": {
			Type:     "object",
			Required: []string{"prompt"},
			Properties: map[string]*jsonschema.Schema{
				"prompt": {Type: "string"},
				"args":   {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"tool":   {}, // string or {c, c++} object; validated after decode
				"extension": {}, // string or 2-element array; validated after decode
				"outopt":    {Type: "string"},
				"source":    {Type: "string", Enum: []any{"stdout", "stderr"}},
			},
		},
	},
}

var resolvedPluginSchema *jsonschema.Resolved

func init() {
	r, err := pluginSchema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("panda: invalid built-in plugin schema: %v", err))
	}
	resolvedPluginSchema = r
}

type pluginFile struct {
	Comment string          `json:"comment"`
	Type    string          `json:"type"`
	Action  pluginActionRaw `json:"action"`
}

type pluginActionRaw struct {
	Prompt    string          `json:"prompt"`
	Tool      json.RawMessage `json:"tool"`
	Args      []string        `json:"args"`
	Extension json.RawMessage `json:"extension"`
	OutOpt    string          `json:"outopt"`
	Source    string          `json:"source"`
}

// LoadPlugins validates and materializes the action descriptors named by
// paths. Paths are deduplicated (by the xxhash digest of their absolute,
// cleaned form) before loading. Any structural error is fatal: plugin
// loading either fully succeeds or the process must not start a run with
// a partially loaded plugin set.
func LoadPlugins(paths []string) ([]*ActionDescriptor, error) {
	seen := make(map[uint64]bool)
	var out []*ActionDescriptor
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("panda: plugin %s: %w", p, err)
		}
		abs = filepath.Clean(abs)
		h := xxhash.Sum64String(abs)
		if seen[h] {
			continue
		}
		seen[h] = true

		desc, err := loadPlugin(abs)
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}

func loadPlugin(path string) (*ActionDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("panda: plugin %s: %w", path, err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("panda: plugin %s: invalid JSON: %w", path, err)
	}
	if err := resolvedPluginSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("panda: plugin %s: schema validation failed: %w", path, err)
	}

	var pf pluginFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("panda: plugin %s: %w", path, err)
	}

	switch pf.Type {
	case "Integrated":
		return decodeIntegratedPlugin(path, pf.Action)
	case "Singleton":
		return decodeSingletonPlugin(path, pf.Action)
	default:
		return nil, fmt.Errorf("panda: plugin %s: unknown type %q", path, pf.Type)
	}
}

func decodeExtension(raw json.RawMessage) (outputExt, error) {
	if len(raw) == 0 {
		return outputExt{}, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return sameExt(single), nil
	}
	var pair []string
	if err := json.Unmarshal(raw, &pair); err == nil && len(pair) == 2 {
		return outputExt{C: pair[0], CXX: pair[1]}, nil
	}
	return outputExt{}, fmt.Errorf("extension must be a string or a 2-element array")
}

func decodeTool(raw json.RawMessage) (*ToolOverride, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return &ToolOverride{C: single, CXX: single}, nil
	}
	var obj struct {
		C   string `json:"c"`
		CXX string `json:"c++"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.C == "" || obj.CXX == "" {
			return nil, fmt.Errorf("tool object must contain both \"c\" and \"c++\"")
		}
		return &ToolOverride{C: obj.C, CXX: obj.CXX}, nil
	}
	return nil, fmt.Errorf("tool must be a string or a {c, c++} object")
}

func decodeIntegratedPlugin(path string, a pluginActionRaw) (*ActionDescriptor, error) {
	ext, err := decodeExtension(a.Extension)
	if err != nil {
		return nil, fmt.Errorf("panda: plugin %s: %w", path, err)
	}
	tool, err := decodeTool(a.Tool)
	if err != nil {
		return nil, fmt.Errorf("panda: plugin %s: %w", path, err)
	}
	outOpt := a.OutOpt
	if outOpt == "" && (ext.C != "" || ext.CXX != "") {
		outOpt = "-o"
	}
	glog.V(1).Infof("panda: loaded Integrated plugin %s: %q", path, a.Prompt)
	return &ActionDescriptor{
		Key:        filepath.Base(path),
		Prompt:     a.Prompt,
		Integrated: true,
		ExtraArgs:  a.Args,
		OutputOpt:  outOpt,
		OutputExt:  ext,
		Tool:       tool,
	}, nil
}

func decodeSingletonPlugin(path string, a pluginActionRaw) (*ActionDescriptor, error) {
	if a.Tool == nil {
		return nil, fmt.Errorf("panda: plugin %s: Singleton action requires \"tool\"", path)
	}
	var tool string
	if err := json.Unmarshal(a.Tool, &tool); err != nil {
		return nil, fmt.Errorf("panda: plugin %s: Singleton \"tool\" must be a string", path)
	}

	var ext outputExt
	var capture CaptureStream
	if len(a.Extension) > 0 {
		var extStr string
		if err := json.Unmarshal(a.Extension, &extStr); err != nil {
			return nil, fmt.Errorf("panda: plugin %s: Singleton \"extension\" must be a string", path)
		}
		ext = sameExt(extStr)
		switch a.Source {
		case "stdout":
			capture = CaptureStdout
		case "stderr":
			capture = CaptureStderr
		default:
			return nil, fmt.Errorf("panda: plugin %s: Singleton action with an extension requires \"source\" in {stdout, stderr}", path)
		}
	}

	glog.V(1).Infof("panda: loaded Singleton plugin %s: %q", path, a.Prompt)
	return &ActionDescriptor{
		Key:           filepath.Base(path),
		Prompt:        a.Prompt,
		Integrated:    false,
		SingletonTool: tool,
		ExtraArgs:     a.Args,
		OutputExt:     ext,
		CaptureStream: capture,
	}, nil
}
