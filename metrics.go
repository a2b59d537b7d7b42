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
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is an optional Prometheus metrics registry for a scheduler
// run. It is the only place panda touches prometheus/client_golang: the
// worker pool and reducers call into it, never import it directly,
// beyond this file.
type Metrics struct {
	registry     *prometheus.Registry
	tasksTotal   *prometheus.CounterVec
	taskDuration prometheus.Histogram
	inFlight     prometheus.Gauge
}

// NewMetrics builds a fresh registry with the scheduler's metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panda",
			Name:      "tasks_total",
			Help:      "Number of per-unit and reducer tasks executed, by result.",
		}, []string{"result"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "panda",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of a single worklist task.",
			Buckets:   prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "panda",
			Name:      "tasks_in_flight",
			Help:      "Number of tasks currently executing across all workers.",
		}),
	}
	reg.MustRegister(m.tasksTotal, m.taskDuration, m.inFlight)
	return m
}

// ObserveTask records one completed task's duration and result.
func (m *Metrics) ObserveTask(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.tasksTotal.WithLabelValues(result).Inc()
	m.taskDuration.Observe(d.Seconds())
}

// ServeHTTP starts the /metrics handler on addr in the background. It
// returns a closer that should be called when the run finishes.
func (m *Metrics) ServeHTTP(addr string) (func() error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Warningf("panda: metrics server: %v", err)
		}
	}()
	glog.Infof("panda: metrics listening on %s", addr)
	return srv.Close, nil
}
