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

	"gopkg.in/yaml.v3"
)

// configFile mirrors the subset of Options an operator can pin in a
// checked-in file instead of repeating flags on every invocation. The
// CLI layer applies flag overrides on top of whatever this loads.
type configFile struct {
	CC       string   `yaml:"cc"`
	CXX      string   `yaml:"cxx"`
	Efmer    string   `yaml:"efmer"`
	Strategy Strategy `yaml:"scheduler_strategy"`
	Metric   JobSizeMetric `yaml:"measure_job_size_with"`
	Actions  []string `yaml:"actions"`
	Plugins  []string `yaml:"plugins"`
}

// LoadConfigFile reads a YAML config file and applies its settings onto
// opts. Explicitly passed flags should win, so the CLI layer calls this
// before applying the flags it finds set (cli.Context.IsSet).
func LoadConfigFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return err
	}
	if cf.CC != "" {
		opts.CC = cf.CC
	}
	if cf.CXX != "" {
		opts.CXX = cf.CXX
	}
	if cf.Efmer != "" {
		opts.Efmer = cf.Efmer
	}
	if cf.Strategy != "" {
		opts.Strategy = cf.Strategy
	}
	if cf.Metric != "" {
		opts.Metric = cf.Metric
	}
	for _, a := range cf.Actions {
		opts.Actions[a] = true
	}
	opts.Plugins = append(opts.Plugins, cf.Plugins...)
	return nil
}
