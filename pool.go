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
	"sync"
	"time"

	"github.com/golang/glog"
)

// Pool is a fixed-size set of workers consuming a Worklist in parallel.
// Workers exit only on a Stop sentinel; Join posts exactly N of them,
// one per worker, so every worker sees exactly one and none blocks
// forever waiting for work that will never arrive.
type Pool struct {
	n       int
	wl      Worklist
	wg      sync.WaitGroup
	metrics *Metrics
}

// NewPool spawns n workers pulling from wl. metrics may be nil.
func NewPool(n int, wl Worklist, metrics *Metrics) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{n: n, wl: wl, metrics: metrics}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	return p
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	for {
		fn, stop := p.wl.Get()
		if stop {
			glog.V(2).Infof("panda: worker %d: stop", id)
			return
		}
		if p.metrics != nil {
			p.metrics.inFlight.Inc()
		}
		start := time.Now()
		err := fn()
		dur := time.Since(start)
		if p.metrics != nil {
			p.metrics.inFlight.Dec()
			p.metrics.ObserveTask(dur, err == nil)
		}
		if err != nil {
			glog.Warning(err)
		}
	}
}

// AddTask enqueues a per-unit task; file feeds the job-size estimator
// for size-ordered worklists and is ignored by FIFO ones.
func (p *Pool) AddTask(fn TaskFunc, file string) {
	p.wl.PutTask(fn, file)
}

// AddReducer enqueues a whole-CDB reducer task (no job size).
func (p *Pool) AddReducer(fn TaskFunc) {
	p.wl.PutReducer(fn)
}

// Join posts exactly N stop sentinels — one per worker — and waits for
// every worker to exit. It must only be called after all per-unit and
// per-CDB tasks have been enqueued.
func (p *Pool) Join() {
	for i := 0; i < p.n; i++ {
		p.wl.PutStop()
	}
	p.wg.Wait()
}
