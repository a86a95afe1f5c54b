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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateUniquePIDs tests that live processes never share a pid
// TestCreateUniquePIDs 测试存活进程不会共享同一 pid
func TestCreateUniquePIDs(t *testing.T) {
	m, _ := newTestManager(t, 64)
	seen := make(map[ID]bool)
	for i := 0; i < 64; i++ {
		p := mustCreate(t, m, nil)
		assert.False(t, seen[p.PID()], "pid %d allocated twice", p.PID())
		seen[p.PID()] = true
	}
	_, err := m.Create(bg(), nil)
	assert.ErrorIs(t, err, ErrNoFreePID)
}

// TestDestroyMakesPIDReusable tests that destroy frees the slot
// TestDestroyMakesPIDReusable 测试销毁后槽位可被重用
func TestDestroyMakesPIDReusable(t *testing.T) {
	m, rec := newTestManager(t, 2)
	a := mustCreate(t, m, nil)
	b := mustCreate(t, m, nil)

	m.Destroy(bg(), a)
	_, ok := m.Lookup(a.PID())
	assert.False(t, ok)
	assert.Nil(t, m.LookupZombie(a.PID()))

	c := mustCreate(t, m, nil)
	assert.Equal(t, a.PID(), c.PID())
	assert.NotSame(t, a, c)
	assert.NotEqual(t, b.PID(), c.PID())
	assert.Zero(t, rec.count())
}

// TestCreateWithParent tests hierarchy links and inheritance
// TestCreateWithParent 测试层级链接与属性继承
func TestCreateWithParent(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	parent.Attrs.Comm = "sh"
	parent.Attrs.Umask = 0o077
	parent.Attrs.Rlimits[RlimitNofile] = Rlimit{Cur: 64, Max: 128}
	parent.HasTimer.Store(true)
	parent.ExitLock.Lock()
	parent.ChildrenRusage.UserTime = 42
	parent.ExitLock.Unlock()

	child := mustCreate(t, m, parent)

	assert.Equal(t, parent.PID(), child.PPID())
	assert.Same(t, parent, child.Parent())
	assert.Equal(t, []ID{child.PID()}, pids(parent.Children()))
	assert.Equal(t, parent.Attrs, child.Attrs)
	assert.False(t, child.HasTimer.Load())
	assert.Zero(t, child.ChildrenUsage())

	child.Attrs.Comm = "ls"
	child.Attrs.Rlimits[RlimitNofile].Cur = 1
	assert.Equal(t, "sh", parent.Attrs.Comm)
	assert.Equal(t, uint64(64), parent.Attrs.Rlimits[RlimitNofile].Cur)
}

// TestSynchronizationIsIndependent tests that a child never shares locks or conditions with its parent
// TestSynchronizationIsIndependent 测试子进程不会与父进程共享锁或条件变量
func TestSynchronizationIsIndependent(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)

	child.SignalLock.Lock()
	assert.True(t, parent.SignalLock.TryLock())
	parent.SignalLock.Unlock()
	child.SignalLock.Unlock()

	parent.ExitLock.Lock()
	assert.True(t, child.ExitLock.TryLock())
	child.ExitLock.Unlock()
	parent.ExitLock.Unlock()

	assert.NotSame(t, parent.ChildExit, child.ChildExit)
	assert.NotSame(t, parent.VforkDone, child.VforkDone)
	assert.Same(t, &child.ExitLock, child.ChildExit.L)
	assert.Same(t, &child.ExitLock, child.VforkDone.L)
}

// TestParentlessCreateLeadsGroupAndSession tests the job-control placement of new processes
// TestParentlessCreateLeadsGroupAndSession 测试新进程的作业控制归属
func TestParentlessCreateLeadsGroupAndSession(t *testing.T) {
	m, _ := newTestManager(t, 16)
	leader := mustCreate(t, m, nil)
	child := mustCreate(t, m, leader)

	assert.Equal(t, NoPID, leader.PPID())
	assert.Nil(t, leader.Parent())
	assert.Equal(t, leader.PID(), leader.PGID())
	assert.Equal(t, leader.PID(), leader.SID())
	assert.Equal(t, leader.PID(), child.PGID())
	assert.Equal(t, leader.PID(), child.SID())
	assert.Equal(t, []ID{leader.PID(), child.PID()}, m.GroupMembers(leader.PID()))
	assert.Equal(t, []ID{leader.PID(), child.PID()}, m.SessionMembers(leader.PID()))
}

// TestConcurrentCreateReportsExhaustion tests N concurrent creators against a table of N-1 usable slots
// TestConcurrentCreateReportsExhaustion 测试并发创建在表满时报告耗尽而非挂起
func TestConcurrentCreateReportsExhaustion(t *testing.T) {
	const maxPID = 128
	const workers = maxPID + 32
	m, _ := newTestManager(t, maxPID)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		got       = make(map[ID]int)
		exhausted int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := m.Create(context.Background(), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrNoFreePID):
				exhausted++
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			default:
				got[p.PID()]++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Len(t, got, maxPID)
	for id, n := range got {
		assert.Equal(t, 1, n, "pid %d", id)
	}
	assert.Equal(t, workers-maxPID, exhausted)
	assert.Equal(t, maxPID, m.Table().Len())
}

// TestRoundTripTwoChildren tests destroying a child then the parent
// TestRoundTripTwoChildren 测试先销毁一个子进程再销毁父进程
func TestRoundTripTwoChildren(t *testing.T) {
	m, rec := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	first := mustCreate(t, m, parent)
	second := mustCreate(t, m, parent)

	m.Destroy(bg(), first)
	assert.Equal(t, []ID{second.PID()}, pids(parent.Children()))

	m.Destroy(bg(), parent)
	assert.Same(t, second, m.LookupLive(second.PID()))
	assert.Equal(t, NoPID, second.PPID())
	assert.Empty(t, second.Siblings())
	assert.Zero(t, rec.count())
}

// TestSmallTableReuse tests that a four-slot table recycles ids
// TestSmallTableReuse 测试四槽位的表会循环重用 pid
func TestSmallTableReuse(t *testing.T) {
	m, _ := newTestManager(t, 3)
	seen := make(map[ID]bool)
	for i := 0; i < 10; i++ {
		p, err := m.Create(bg(), nil)
		require.NoError(t, err, "iteration %d", i)
		assert.True(t, p.PID() >= 1 && p.PID() <= 3)
		seen[p.PID()] = true
		m.Destroy(bg(), p)
	}
	assert.Len(t, seen, 3)
	assert.Zero(t, m.Table().Len())
}

// TestDestroyTwiceIsFatal tests double destroy detection
// TestDestroyTwiceIsFatal 测试重复销毁的检测
func TestDestroyTwiceIsFatal(t *testing.T) {
	m, rec := newTestManager(t, 4)
	p := mustCreate(t, m, nil)
	m.Destroy(bg(), p)
	require.Zero(t, rec.count())

	q := mustCreate(t, m, nil)
	m.Destroy(bg(), p)
	assert.Equal(t, 1, rec.count())
	assert.Same(t, q, m.LookupLive(q.PID()))
}

// TestDestroyReparentsToReaper tests orphan adoption by pid 1
// TestDestroyReparentsToReaper 测试孤儿进程由 pid 1 收养
func TestDestroyReparentsToReaper(t *testing.T) {
	m, _ := newTestManager(t, 16)
	reaper := mustCreate(t, m, nil)
	require.Equal(t, ReaperPID, reaper.PID())
	mid := mustCreate(t, m, reaper)
	leaf := mustCreate(t, m, mid)

	m.Destroy(bg(), mid)

	assert.Equal(t, ReaperPID, leaf.PPID())
	assert.Equal(t, []ID{leaf.PID()}, pids(reaper.Children()))
}

// TestCreateUnderDestroyedParent tests creation below a stale parent
// TestCreateUnderDestroyedParent 测试在已销毁父进程下创建
func TestCreateUnderDestroyedParent(t *testing.T) {
	m, _ := newTestManager(t, 16)
	p := mustCreate(t, m, nil)
	m.Destroy(bg(), p)
	_, err := m.Create(bg(), p)
	assert.ErrorIs(t, err, ErrNoSuchProcess)

	other, _ := newTestManager(t, 16)
	q := mustCreate(t, other, nil)
	_, err = m.Create(bg(), q)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// TestEventsEmitted tests the lifecycle event stream
// TestEventsEmitted 测试生命周期事件流
func TestEventsEmitted(t *testing.T) {
	m, _ := newTestManager(t, 16)
	var (
		mu     sync.Mutex
		events []Event
	)
	m.SetEventHandler(func(ctx context.Context, ev Event, info *Info) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		// handlers run outside the table lock
		_ = m.Table().Len()
	})

	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)
	m.Exit(bg(), child, ExitedStatus(0), Rusage{})
	_, err := m.Wait(bg(), parent, WaitAny, WaitOptions{})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Event{EventCreated, EventCreated, EventExited, EventDestroyed, EventReaped}, events)
}

// TestInfoSnapshot tests the JSON snapshot of a process
// TestInfoSnapshot 测试进程的快照
func TestInfoSnapshot(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)

	info := parent.Info()
	assert.Equal(t, parent.PID(), info.PID)
	assert.Equal(t, StateCreated, info.State)
	assert.Equal(t, "init", info.Comm)
	assert.Equal(t, []ID{child.PID()}, info.Children)
	assert.Nil(t, info.StartedAt)
	assert.Nil(t, info.ExitedAt)

	m.Exit(bg(), child, ExitedStatus(7), Rusage{MaxRSS: 10})
	cinfo := child.Info()
	assert.Equal(t, StateZombie, cinfo.State)
	assert.Equal(t, 7, cinfo.ExitStatus.ExitCode())
	assert.NotNil(t, cinfo.ExitedAt)
}

// TestCreateWithSetsAttrsBeforePublish tests that the created event already sees the edited attrs
// TestCreateWithSetsAttrsBeforePublish 测试创建事件已能看到修改后的属性
func TestCreateWithSetsAttrsBeforePublish(t *testing.T) {
	m, _ := newTestManager(t, 16)
	var (
		mu    sync.Mutex
		comms []string
	)
	m.SetEventHandler(func(ctx context.Context, ev Event, info *Info) {
		if ev != EventCreated {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		comms = append(comms, info.Comm)
	})

	parent := mustCreate(t, m, nil)
	child, err := m.CreateWith(bg(), parent, func(a *Attrs) {
		a.Comm = "worker"
		a.Cred.UID = 1000
	})
	require.NoError(t, err)

	assert.Equal(t, "worker", child.Comm())
	assert.Equal(t, uint32(1000), child.Cred().UID)
	assert.Equal(t, "init", parent.Comm())
	assert.Zero(t, parent.Cred().UID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"init", "worker"}, comms)
}

// TestInfoDuringAttrChanges tests that snapshots stay safe while the owner edits comm, cred and the timer flag
// TestInfoDuringAttrChanges 测试进程修改命令名、凭证与定时器标志时快照仍然安全
func TestInfoDuringAttrChanges(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			child.SetComm("sh")
			child.SetCred(Credentials{UID: uint32(i), GID: uint32(i)})
			child.HasTimer.Store(i%2 == 0)
			child.SetComm("ls")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			for _, p := range m.Table().Snapshot() {
				info := p.Info()
				assert.NotEmpty(t, info.Comm)
			}
		}
	}()
	wg.Wait()

	info := child.Info()
	assert.Equal(t, "ls", info.Comm)
	assert.Equal(t, uint32(499), info.Cred.UID)
	assert.False(t, info.HasTimer)
}
