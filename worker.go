// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import (
	"fmt"
	"runtime"

	"code.hybscloud.com/atomix"
)

// State is a worker lifecycle state.
//
//	Idle → Running → Stopping → Stopped
//
// A worker stopped before it was started goes straight from Idle to Stopped.
type State uint64

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", uint64(s))
	}
}

// Runner is the lifecycle every pipeline worker exposes.
type Runner interface {
	Start()
	Stop()
	Wait()
	State() State
}

// lifecycle runs one worker loop on a goroutine locked to its own OS thread.
//
// The loop polls running at iteration boundaries, so a stop request lets
// the current drain-and-forward pass and its bounded retries finish.
type lifecycle struct {
	state atomix.Uint64
	done  chan struct{}
}

func newLifecycle() lifecycle {
	return lifecycle{done: make(chan struct{})}
}

// start moves Idle to Running and spawns loop. Later calls are no-ops.
func (l *lifecycle) start(loop func()) {
	if !l.state.CompareAndSwapAcqRel(uint64(StateIdle), uint64(StateRunning)) {
		return
	}
	go func() {
		runtime.LockOSThread()
		defer func() {
			runtime.UnlockOSThread()
			l.state.StoreRelease(uint64(StateStopped))
			close(l.done)
		}()
		loop()
	}()
}

func (l *lifecycle) running() bool {
	return l.state.LoadAcquire() == uint64(StateRunning)
}

// Stop requests termination and returns immediately. Idempotent.
func (l *lifecycle) Stop() {
	if l.state.CompareAndSwapAcqRel(uint64(StateRunning), uint64(StateStopping)) {
		return
	}
	if l.state.CompareAndSwapAcqRel(uint64(StateIdle), uint64(StateStopped)) {
		close(l.done)
	}
}

// Wait blocks until the worker goroutine has exited.
// It returns at once for a worker that was never started.
// Wait must not race with Start.
func (l *lifecycle) Wait() {
	if State(l.state.LoadAcquire()) == StateIdle {
		return
	}
	<-l.done
}

// State returns the current lifecycle state.
func (l *lifecycle) State() State {
	return State(l.state.LoadAcquire())
}
