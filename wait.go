// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import (
	"fmt"
	"runtime"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// WaitPolicy selects how a worker pauses when it has nothing to do or
// when a destination ring is full.
//
// None of the policies sleep on a lock; they differ in how much CPU an
// idle worker burns and how fast it reacts to new data:
//
//	WaitYield   - runtime.Gosched, the lowest wake-up latency
//	WaitSpin    - CPU pause instructions, keeps the OS thread hot
//	WaitBackoff - adaptive iox.Backoff, the lowest CPU usage
type WaitPolicy uint8

const (
	WaitYield WaitPolicy = iota
	WaitSpin
	WaitBackoff
)

// String returns the configuration name of p.
func (p WaitPolicy) String() string {
	switch p {
	case WaitYield:
		return "yield"
	case WaitSpin:
		return "spin"
	case WaitBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("WaitPolicy(%d)", p)
	}
}

// ParseWaitPolicy parses a configuration name. The empty string selects WaitYield.
func ParseWaitPolicy(s string) (WaitPolicy, error) {
	switch s {
	case "", "yield":
		return WaitYield, nil
	case "spin":
		return WaitSpin, nil
	case "backoff":
		return WaitBackoff, nil
	}
	return 0, fmt.Errorf("%w: unknown wait policy %q", ErrInvalidConfig, s)
}

// waiter is a per-goroutine pause state. Not safe for concurrent use.
type waiter struct {
	policy  WaitPolicy
	sw      spin.Wait
	backoff iox.Backoff
}

func newWaiter(p WaitPolicy) waiter {
	return waiter{policy: p}
}

// Wait pauses once according to the policy.
func (w *waiter) Wait() {
	switch w.policy {
	case WaitSpin:
		w.sw.Once()
	case WaitBackoff:
		w.backoff.Wait()
	default:
		runtime.Gosched()
	}
}

// Reset forgets accumulated pause state after progress.
func (w *waiter) Reset() {
	switch w.policy {
	case WaitSpin:
		w.sw = spin.Wait{}
	case WaitBackoff:
		w.backoff.Reset()
	}
}

// push delivers m to q, retrying up to attempts times with a pause
// between tries. Reports false when every attempt met a full ring.
func (w *waiter) push(q *Queue, m *Message, attempts int) bool {
	for i := range attempts {
		if q.Enqueue(m) == nil {
			if i > 0 {
				w.Reset()
			}
			return true
		}
		w.Wait()
	}
	w.Reset()
	return false
}

// busy burns d on the current goroutine without yielding the OS thread.
// It stands in for per-message work in benchmarks.
func busy(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := Now() + int64(d)
	sw := spin.Wait{}
	for Now() < deadline {
		sw.Once()
	}
}
