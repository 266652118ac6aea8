/*
Copyright © 2021 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package refresh

import (
	"cloud.google.com/go/logging"
	"context"
	"sync"
	"time"

	"github.com/ajjensen13/kabu/internal/util"
)

// progress aggregates worker outcomes. It is the only state shared across
// workers besides the queue itself.
type progress struct {
	mu        sync.Mutex
	total     int
	every     int
	start     time.Time
	processed int
	succeeded int
	noData    int
	skipped   int
	failed    int
	failures  []string
}

func newProgress(total int) *progress {
	every := total / 10
	if every < 1 {
		every = 1
	}
	return &progress{total: total, every: every, start: time.Now()}
}

func (p *progress) record(ctx context.Context, job *Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	switch job.Outcome {
	case OutcomeSucceeded:
		p.succeeded++
	case OutcomeNoData:
		p.noData++
	case OutcomeSkipped:
		p.skipped++
	default:
		p.failed++
		p.failures = append(p.failures, job.Symbol)
	}

	if p.processed%p.every == 0 || p.processed == p.total {
		elapsed := time.Since(p.start)
		remaining := time.Duration(0)
		if p.processed > 0 {
			remaining = elapsed / time.Duration(p.processed) * time.Duration(p.total-p.processed)
		}
		util.Logf(ctx, logging.Info, "progress: %d/%d symbols (%.1f%%), elapsed %v, estimated remaining %v",
			p.processed, p.total, float64(p.processed)/float64(p.total)*100, elapsed.Round(time.Second), remaining.Round(time.Second))
	}
}

func (p *progress) summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Summary{
		Processed: p.processed,
		Succeeded: p.succeeded,
		NoData:    p.noData,
		Skipped:   p.skipped,
		Failed:    p.failed,
		Elapsed:   time.Since(p.start),
		Failures:  append([]string(nil), p.failures...),
	}
}
