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
	"fmt"
	"sync"

	"github.com/VividCortex/gohistogram"
	"github.com/golang/glog"
)

// sizeStats is a streaming summary of the job sizes the estimator
// computed while the driver filled a priority worklist. It never feeds
// back into scheduling decisions; it exists only to give a verbose run
// a human-readable sense of how skewed the unit sizes were.
type sizeStats struct {
	mu   sync.Mutex
	hist gohistogram.Histogram
	n    int
}

func newSizeStats() *sizeStats {
	return &sizeStats{hist: gohistogram.NewNumericHistogram(16)}
}

func (s *sizeStats) observe(size int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.Add(float64(size))
	s.n++
}

// logSummary prints a single formatted glog line summarizing the
// observed job-size distribution for metric.
func (s *sizeStats) logSummary(metric JobSizeMetric) {
	if s == nil || s.n == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	glog.Infof(
		"panda: job size (%s) over %d units: mean=%.1f p50=%.1f p90=%.1f",
		metric, s.n, s.hist.Mean(), s.hist.Quantile(0.5), s.hist.Quantile(0.9),
	)
}

func (s *sizeStats) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%d observations", s.n)
}
