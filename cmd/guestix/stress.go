/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/process"
	"go.uber.org/zap"
)

// StressOptions configures a pid table stress run
// StressOptions 配置 PID 表压测参数
type StressOptions struct {
	Workers    int
	Iterations int
	MaxPID     int

	// Hold is how many live processes each goroutine keeps before releasing the oldest.
	// Hold 是每个 goroutine 在释放最早进程之前保持的存活进程数。
	Hold int

	// Threads starts a native thread per process and reaps it through Wait.
	// Threads 为每个进程启动原生线程并通过 Wait 回收。
	Threads bool
}

const defaultStressHold = 4

// StressReport summarizes a stress run
// StressReport 汇总一次压测结果
type StressReport struct {
	Created    int64
	Exhausted  int64
	Duplicates int64
	Elapsed    time.Duration
	Remaining  int
}

func (r StressReport) String() string {
	return fmt.Sprintf("created=%d exhausted=%d duplicates=%d remaining=%d elapsed=%s",
		r.Created, r.Exhausted, r.Duplicates, r.Remaining, r.Elapsed)
}

// runStress creates and destroys processes from many goroutines under one
// root and checks that no pid is ever handed out twice while live.
func runStress(ctx context.Context, opts StressOptions) (StressReport, error) {
	if opts.Workers <= 0 || opts.Iterations <= 0 {
		return StressReport{}, fmt.Errorf("workers and iterations must be positive / workers 与 iterations 必须为正数")
	}

	hold := opts.Hold
	if hold <= 0 {
		hold = defaultStressHold
	}

	var (
		live                           sync.Map
		created, exhausted, duplicates atomic.Int64
		wg                             sync.WaitGroup
	)

	m := process.NewManager(process.ManagerConfig{MaxPID: opts.MaxPID})
	root, err := m.Create(ctx, nil)
	if err != nil {
		return StressReport{}, err
	}
	// The pid leaves live before Exit, so it is gone before the slot can be reused.
	d := process.NewDriver(m, process.RunFunc(func(ctx context.Context, p *process.Process) {
		live.CompareAndDelete(p.PID(), p)
		m.Exit(ctx, p, process.ExitedStatus(0), process.Rusage{})
		process.ExitThread()
	}))

	release := func(p *process.Process) {
		if opts.Threads {
			if _, err := m.Wait(ctx, root, process.WaitPID(p.PID()), process.WaitOptions{}); err != nil {
				logger.Error(ctx, "[Stress] wait failed / 等待失败", zap.Error(err))
			}
			return
		}
		live.CompareAndDelete(p.PID(), p)
		m.Destroy(ctx, p)
	}

	start := time.Now()
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held := make([]*process.Process, 0, hold)
			for i := 0; i < opts.Iterations; i++ {
				if len(held) == hold {
					release(held[0])
					held = held[1:]
				}
				p, err := m.Create(ctx, root)
				if errors.Is(err, process.ErrNoFreePID) {
					exhausted.Add(1)
					continue
				}
				if err != nil {
					logger.Error(ctx, "[Stress] create failed / 创建失败", zap.Error(err))
					continue
				}
				created.Add(1)
				if _, dup := live.LoadOrStore(p.PID(), p); dup {
					duplicates.Add(1)
				}
				if opts.Threads {
					d.Start(ctx, p)
				}
				held = append(held, p)
			}
			for _, p := range held {
				release(p)
			}
		}()
	}
	wg.Wait()

	m.Destroy(ctx, root)
	return StressReport{
		Created:    created.Load(),
		Exhausted:  exhausted.Load(),
		Duplicates: duplicates.Load(),
		Elapsed:    time.Since(start),
		Remaining:  m.Table().Len(),
	}, nil
}
