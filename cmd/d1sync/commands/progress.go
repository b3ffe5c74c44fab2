// Copyright 2025 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/libraries/synccore/engine"
	"github.com/dolthub/d1-sync/libraries/synccore/state"
)

const progressRefresh = 150 * time.Millisecond

// progressRenderer paints a single terminal bar for a running sync, fed from
// engine stats snapshots on a ticker. Commands only construct one when
// stdout is a terminal and quiet mode is off.
type progressRenderer struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	current  atomic.Value
	stop     chan struct{}
	stopped  chan struct{}
}

// watchProgress starts rendering e's progress and returns the function that
// settles the bar with the run's final stats. The caller must invoke it
// exactly once, after Push or Pull returns.
func watchProgress(e *engine.Engine, op state.Operation) func(engine.Stats) {
	r := &progressRenderer{
		progress: mpb.New(
			mpb.WithOutput(cli.CliOut),
			mpb.WithWidth(64),
			mpb.WithRefreshRate(progressRefresh),
		),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	r.current.Store("")
	r.bar = r.progress.New(0,
		mpb.BarStyle(),
		mpb.PrependDecorators(
			decor.Name(string(op)+" "),
			decor.Any(func(decor.Statistics) string {
				return r.current.Load().(string)
			}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d "),
			decor.Percentage(),
		),
	)

	go func() {
		defer close(r.stopped)
		tick := time.NewTicker(progressRefresh)
		defer tick.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-tick.C:
				r.refresh(e.Stats())
			}
		}
	}()

	return r.finish
}

func (r *progressRenderer) refresh(st engine.Stats) {
	if st.CurrentTable != "" {
		r.current.Store(st.CurrentTable + " ")
	}
	if st.RowsTotal > 0 {
		r.bar.SetTotal(st.RowsTotal, false)
	}
	r.bar.SetCurrent(st.RowsProcessed + st.RowsFailed)
}

// finish stops the ticker and completes or drops the bar so the container's
// Wait returns before the summary prints.
func (r *progressRenderer) finish(st engine.Stats) {
	close(r.stop)
	<-r.stopped

	if st.Status == state.SyncCompleted {
		r.refresh(st)
		total := st.RowsTotal
		if total <= 0 {
			total = st.RowsProcessed + st.RowsFailed
		}
		r.bar.SetTotal(total, true)
	} else {
		r.bar.Abort(true)
	}
	r.progress.Wait()
}
