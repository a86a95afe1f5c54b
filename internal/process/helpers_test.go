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

package process

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// fatalRecorder collects broken-invariant reports instead of exiting.
// fatalRecorder 收集不变量被破坏的报告而不是退出进程。
type fatalRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *fatalRecorder) record(_ context.Context, msg string, _ ...zap.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *fatalRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

func newTestManager(t testingT, maxPID int) (*Manager, *fatalRecorder) {
	t.Helper()
	rec := &fatalRecorder{}
	m := NewManager(ManagerConfig{MaxPID: maxPID})
	m.SetFatalHandler(rec.record)
	return m, rec
}

func mustCreate(t testingT, m *Manager, parent *Process) *Process {
	t.Helper()
	p, err := m.Create(context.Background(), parent)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return p
}

func pids(procs []*Process) []ID {
	out := make([]ID, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.PID())
	}
	return out
}

func bg() context.Context {
	return context.Background()
}
