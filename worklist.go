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
	"container/heap"
	"sync"
)

// Strategy selects the worklist's ordering policy.
type Strategy string

// Recognized scheduler strategies.
const (
	StrategyFIFO Strategy = "fifo"
	StrategyLJF  Strategy = "ljf" // longest job first
	StrategySJF  Strategy = "sjf" // shortest job first
)

// TaskFunc is one unit of worklist work: a per-unit action invocation or
// a whole-CDB reducer. Its error is logged by the caller and never
// propagated to sibling tasks.
type TaskFunc func() error

// worklistItem is a tagged {Task | Stop} variant: wrapping every
// enqueued value lets the heap comparator express "stop sorts after
// every task" without runtime type switches.
type worklistItem struct {
	fn   TaskFunc
	size int
	stop bool
	seq  int64
}

// Worklist is the uniform interface shared by the FIFO and priority
// implementations, safe for concurrent producers and consumers.
type Worklist interface {
	// PutTask enqueues fn as a per-unit task. file is the translation
	// unit's source path, used by size-ordered worklists to estimate a
	// priority before insertion; FIFO worklists ignore it.
	PutTask(fn TaskFunc, file string)
	// PutReducer enqueues fn as a whole-CDB reducer task. Reducer tasks
	// carry no job size (treated as size 0; see DESIGN.md for why).
	PutReducer(fn TaskFunc)
	// PutStop enqueues one stop sentinel. Stops always drain strictly
	// after every task already or later inserted.
	PutStop()
	// Get blocks until an item is available and returns it. stop
	// reports whether the caller should exit its worker loop; when
	// stop is true, fn is nil.
	Get() (fn TaskFunc, stop bool)
}

// NewWorklist constructs the Worklist implementation for strategy. FIFO
// ignores est; the priority variants use est to score each task's file
// before heap placement.
func NewWorklist(strategy Strategy, est Estimator) Worklist {
	if strategy == StrategyFIFO {
		return newFIFOWorklist()
	}
	return newPriorityWorklist(strategy, est)
}

// --- FIFO ---

// fifoWorklist keeps tasks and stops in separate queues so a stop never
// jumps ahead of a task, no matter which was enqueued first: Get always
// drains the task FIFO before handing out a stop.
type fifoWorklist struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks []TaskFunc
	stops int
}

func newFIFOWorklist() *fifoWorklist {
	w := &fifoWorklist{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *fifoWorklist) PutTask(fn TaskFunc, file string) {
	w.mu.Lock()
	w.tasks = append(w.tasks, fn)
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *fifoWorklist) PutReducer(fn TaskFunc) { w.PutTask(fn, "") }

func (w *fifoWorklist) PutStop() {
	w.mu.Lock()
	w.stops++
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *fifoWorklist) Get() (TaskFunc, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.tasks) == 0 && w.stops == 0 {
		w.cond.Wait()
	}
	if len(w.tasks) > 0 {
		fn := w.tasks[0]
		w.tasks = w.tasks[1:]
		return fn, false
	}
	w.stops--
	return nil, true
}

// --- Priority (longest-first / shortest-first) ---

type priorityHeap struct {
	items    []*worklistItem
	strategy Strategy
}

func (h priorityHeap) Len() int      { return len(h.items) }
func (h priorityHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h priorityHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.stop != b.stop {
		return !a.stop // a task (stop=false) always sorts before a stop
	}
	if a.stop && b.stop {
		return a.seq < b.seq
	}
	if a.size != b.size {
		if h.strategy == StrategySJF {
			return a.size < b.size
		}
		return a.size > b.size // longest-first: descending size
	}
	return a.seq < b.seq
}

func (h *priorityHeap) Push(x any) {
	h.items = append(h.items, x.(*worklistItem))
}

func (h *priorityHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return it
}

type priorityWorklist struct {
	mu      sync.Mutex
	cond    *sync.Cond
	heap    priorityHeap
	nextSeq int64
	est     Estimator
}

func newPriorityWorklist(strategy Strategy, est Estimator) *priorityWorklist {
	w := &priorityWorklist{
		heap: priorityHeap{strategy: strategy},
		est:  est,
	}
	w.cond = sync.NewCond(&w.mu)
	heap.Init(&w.heap)
	return w
}

func (w *priorityWorklist) push(it *worklistItem) {
	w.mu.Lock()
	it.seq = w.nextSeq
	w.nextSeq++
	heap.Push(&w.heap, it)
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *priorityWorklist) PutTask(fn TaskFunc, file string) {
	size := 0
	if w.est != nil && file != "" {
		size = w.est(file)
	}
	w.push(&worklistItem{fn: fn, size: size})
}

func (w *priorityWorklist) PutReducer(fn TaskFunc) {
	w.push(&worklistItem{fn: fn, size: 0})
}

func (w *priorityWorklist) PutStop() {
	w.push(&worklistItem{stop: true})
}

func (w *priorityWorklist) Get() (TaskFunc, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.heap.Len() == 0 {
		w.cond.Wait()
	}
	it := heap.Pop(&w.heap).(*worklistItem)
	return it.fn, it.stop
}
