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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExitAndWaitReapsChild tests the basic reap path
// TestExitAndWaitReapsChild 测试基本的回收流程
func TestExitAndWaitReapsChild(t *testing.T) {
	m, rec := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)

	usage := Rusage{UserTime: time.Second, MaxRSS: 2048, MinFlt: 3}
	m.Exit(bg(), child, ExitedStatus(3), usage)

	assert.True(t, child.IsZombie())
	assert.Nil(t, m.LookupLive(child.PID()))
	assert.Same(t, child, m.LookupZombie(child.PID()))

	res, err := m.Wait(bg(), parent, WaitAny, WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, child.PID(), res.PID)
	assert.True(t, res.Status.Exited())
	assert.Equal(t, 3, res.Status.ExitCode())
	assert.Equal(t, usage, res.Usage)
	assert.Equal(t, usage, parent.ChildrenUsage())

	_, ok := m.Lookup(child.PID())
	assert.False(t, ok)
	assert.Empty(t, parent.Children())
	assert.Zero(t, rec.count())
}

// TestWaitWithoutChildren tests the ErrNoChildren path
// TestWaitWithoutChildren 测试没有子进程时的错误
func TestWaitWithoutChildren(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)

	_, err := m.Wait(bg(), parent, WaitAny, WaitOptions{})
	assert.ErrorIs(t, err, ErrNoChildren)

	other := mustCreate(t, m, nil)
	_, err = m.Wait(bg(), parent, WaitPID(other.PID()), WaitOptions{})
	assert.ErrorIs(t, err, ErrNoChildren)
}

// TestWaitNoHang tests the non-blocking variant
// TestWaitNoHang 测试非阻塞等待
func TestWaitNoHang(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)

	res, err := m.Wait(bg(), parent, WaitAny, WaitOptions{NoHang: true})
	require.NoError(t, err)
	assert.Equal(t, NoPID, res.PID)

	m.Exit(bg(), child, SignaledStatus(SIGTERM), Rusage{})
	res, err = m.Wait(bg(), parent, WaitAny, WaitOptions{NoHang: true})
	require.NoError(t, err)
	assert.Equal(t, child.PID(), res.PID)
	assert.True(t, res.Status.Signaled())
	assert.Equal(t, SIGTERM, res.Status.Signal())
}

// TestWaitBlocksUntilExit tests that a blocked waiter is woken by the exit
// TestWaitBlocksUntilExit 测试阻塞的等待者会被子进程退出唤醒
func TestWaitBlocksUntilExit(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)

	done := make(chan WaitResult, 1)
	go func() {
		res, err := m.Wait(bg(), parent, WaitAny, WaitOptions{})
		if err != nil {
			t.Errorf("wait: %v", err)
		}
		done <- res
	}()

	select {
	case <-done:
		t.Fatal("wait returned before the child exited")
	case <-time.After(20 * time.Millisecond):
	}

	m.Exit(bg(), child, ExitedStatus(1), Rusage{})
	select {
	case res := <-done:
		assert.Equal(t, child.PID(), res.PID)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was never woken")
	}
}

// TestWaitTargets tests pid and group selection
// TestWaitTargets 测试按 pid 与进程组选择子进程
func TestWaitTargets(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	a := mustCreate(t, m, parent)
	b := mustCreate(t, m, parent)
	c := mustCreate(t, m, parent)
	require.NoError(t, m.Setpgid(bg(), c, 0))

	for _, p := range []*Process{a, b, c} {
		m.Exit(bg(), p, ExitedStatus(int(p.PID())), Rusage{})
	}

	res, err := m.Wait(bg(), parent, WaitPID(b.PID()), WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, b.PID(), res.PID)

	res, err = m.Wait(bg(), parent, WaitGroup(c.PID()), WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, c.PID(), res.PID)

	_, err = m.Wait(bg(), parent, WaitGroup(c.PID()), WaitOptions{})
	assert.ErrorIs(t, err, ErrNoChildren)

	res, err = m.Wait(bg(), parent, WaitOwnGroup, WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, a.PID(), res.PID)
}

// TestConcurrentWaitersReapOnce tests that a zombie is reaped by exactly one waiter
// TestConcurrentWaitersReapOnce 测试僵尸进程只会被一个等待者回收
func TestConcurrentWaitersReapOnce(t *testing.T) {
	m, rec := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)
	child := mustCreate(t, m, parent)

	const waiters = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reaped  int
		noChild int
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Wait(bg(), parent, WaitPID(child.PID()), WaitOptions{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reaped++
			case errors.Is(err, ErrNoChildren):
				noChild++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	m.Exit(bg(), child, ExitedStatus(0), Rusage{})

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("waiters hung")
	}
	assert.Equal(t, 1, reaped)
	assert.Equal(t, waiters-1, noChild)
	assert.Zero(t, rec.count())
}

// TestExitTwiceIsFatal tests double exit detection
// TestExitTwiceIsFatal 测试重复退出的检测
func TestExitTwiceIsFatal(t *testing.T) {
	m, rec := newTestManager(t, 16)
	p := mustCreate(t, m, nil)
	m.Exit(bg(), p, ExitedStatus(0), Rusage{})
	m.Exit(bg(), p, ExitedStatus(1), Rusage{})
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 0, p.ExitStatus().ExitCode())
}

// TestParentlessZombieStays tests that nobody reaps a zombie without a parent
// TestParentlessZombieStays 测试无父进程的僵尸进程会保留到显式销毁
func TestParentlessZombieStays(t *testing.T) {
	m, _ := newTestManager(t, 16)
	p := mustCreate(t, m, nil)
	m.Exit(bg(), p, ExitedStatus(0), Rusage{})

	assert.Same(t, p, m.LookupZombie(p.PID()))
	assert.Nil(t, m.LookupLive(p.PID()))

	m.Destroy(bg(), p)
	assert.Nil(t, m.LookupZombie(p.PID()))
}

// TestOrphanedZombieGoesToReaper tests that a zombie orphan can be reaped by pid 1
// TestOrphanedZombieGoesToReaper 测试僵尸孤儿进程可由 pid 1 回收
func TestOrphanedZombieGoesToReaper(t *testing.T) {
	m, _ := newTestManager(t, 16)
	reaper := mustCreate(t, m, nil)
	mid := mustCreate(t, m, reaper)
	leaf := mustCreate(t, m, mid)

	m.Exit(bg(), leaf, ExitedStatus(9), Rusage{})
	m.Exit(bg(), mid, ExitedStatus(0), Rusage{})
	assert.Equal(t, ReaperPID, leaf.PPID())
	assert.Equal(t, []ID{mid.PID(), leaf.PID()}, pids(reaper.Children()))

	res, err := m.Wait(bg(), reaper, WaitPID(leaf.PID()), WaitOptions{NoHang: true})
	require.NoError(t, err)
	assert.Equal(t, leaf.PID(), res.PID)
	assert.Equal(t, 9, res.Status.ExitCode())

	res, err = m.Wait(bg(), reaper, WaitAny, WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, mid.PID(), res.PID)
}

// TestOrphanHandoverWakesReaper tests that a blocked reaper notices an adopted zombie
// TestOrphanHandoverWakesReaper 测试阻塞的收养进程能感知被收养的僵尸进程
func TestOrphanHandoverWakesReaper(t *testing.T) {
	m, _ := newTestManager(t, 16)
	reaper := mustCreate(t, m, nil)
	keeper := mustCreate(t, m, reaper)
	mid := mustCreate(t, m, reaper)
	leaf := mustCreate(t, m, mid)
	require.NoError(t, m.Setpgid(bg(), leaf, 0))
	require.NoError(t, m.Setpgid(bg(), keeper, leaf.PID()))

	done := make(chan WaitResult, 1)
	go func() {
		res, err := m.Wait(bg(), reaper, WaitGroup(leaf.PID()), WaitOptions{})
		if err != nil {
			t.Errorf("wait: %v", err)
		}
		done <- res
	}()

	m.Exit(bg(), leaf, ExitedStatus(4), Rusage{})
	m.Destroy(bg(), mid)

	select {
	case res := <-done:
		assert.Equal(t, leaf.PID(), res.PID)
	case <-time.After(5 * time.Second):
		t.Fatal("reaper never collected the orphan")
	}
	assert.Same(t, keeper, m.LookupLive(keeper.PID()))
}

// TestChildrenRusageIncludesGrandchildren tests usage accumulation across generations
// TestChildrenRusageIncludesGrandchildren 测试跨代的资源使用量累计
func TestChildrenRusageIncludesGrandchildren(t *testing.T) {
	m, _ := newTestManager(t, 16)
	top := mustCreate(t, m, nil)
	mid := mustCreate(t, m, top)
	leaf := mustCreate(t, m, mid)

	m.Exit(bg(), leaf, ExitedStatus(0), Rusage{UserTime: 2 * time.Second, MaxRSS: 100})
	_, err := m.Wait(bg(), mid, WaitAny, WaitOptions{})
	require.NoError(t, err)

	m.Exit(bg(), mid, ExitedStatus(0), Rusage{UserTime: time.Second, MaxRSS: 50})
	_, err = m.Wait(bg(), top, WaitAny, WaitOptions{})
	require.NoError(t, err)

	got := top.ChildrenUsage()
	assert.Equal(t, 3*time.Second, got.UserTime)
	assert.Equal(t, int64(100), got.MaxRSS)
}

// TestVforkHandoff tests WaitVfork release by ReleaseVfork and by Exit
// TestVforkHandoff 测试 vfork 交接可由 ReleaseVfork 或 Exit 释放
func TestVforkHandoff(t *testing.T) {
	m, _ := newTestManager(t, 16)
	parent := mustCreate(t, m, nil)

	for _, viaExit := range []bool{false, true} {
		child := mustCreate(t, m, parent)
		released := make(chan struct{})
		go func() {
			child.WaitVfork()
			close(released)
		}()

		select {
		case <-released:
			t.Fatal("vfork parent resumed early")
		case <-time.After(10 * time.Millisecond):
		}

		if viaExit {
			m.Exit(bg(), child, ExitedStatus(0), Rusage{})
		} else {
			child.ReleaseVfork()
		}
		select {
		case <-released:
		case <-time.After(5 * time.Second):
			t.Fatal("vfork parent never resumed")
		}
	}
}

// TestWaitStatusEncoding tests the status word helpers
// TestWaitStatusEncoding 测试状态字编码
func TestWaitStatusEncoding(t *testing.T) {
	st := ExitedStatus(300)
	assert.True(t, st.Exited())
	assert.False(t, st.Signaled())
	assert.Equal(t, 300&0xff, st.ExitCode())

	st = SignaledStatus(SIGKILL)
	assert.False(t, st.Exited())
	assert.Equal(t, -1, st.ExitCode())
	assert.Equal(t, SIGKILL, st.Signal())
}
