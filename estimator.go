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
	"os"

	"github.com/golang/glog"
)

// JobSizeMetric selects which scalar the estimator counts.
type JobSizeMetric string

// Recognized job-size metrics.
const (
	MetricLOC       JobSizeMetric = "loc"
	MetricSemicolon JobSizeMetric = "semicolon"
	MetricComma     JobSizeMetric = "comma"
)

// Estimator computes a non-negative job-size for a source file. It reads
// the file once; on I/O error it returns 0 rather than failing the task.
type Estimator func(file string) int

// NewEstimator returns the Estimator for the given metric, defaulting to
// the semicolon counter for an unrecognized metric.
func NewEstimator(metric JobSizeMetric) Estimator {
	switch metric {
	case MetricLOC:
		return countByte('\n')
	case MetricComma:
		return countByte(',')
	case MetricSemicolon:
		return countByte(';')
	default:
		glog.Warningf("panda: unknown job-size metric %q, defaulting to semicolon", metric)
		return countByte(';')
	}
}

func countByte(b byte) Estimator {
	return func(file string) int {
		data, err := os.ReadFile(file)
		if err != nil {
			glog.V(1).Infof("panda: estimator: %s: %v, treating size as 0", file, err)
			return 0
		}
		return bytes.Count(data, []byte{b})
	}
}
