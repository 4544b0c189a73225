// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import "code.hybscloud.com/atomix"

// counter is a monotonic statistic with one writer and any number of readers.
//
// The owning worker is the only goroutine that increments, so a relaxed
// load followed by a release store is enough; no read-modify-write is needed.
type counter struct {
	v atomix.Uint64
}

func (c *counter) inc() {
	c.v.StoreRelease(c.v.LoadRelaxed() + 1)
}

func (c *counter) load() uint64 {
	return c.v.LoadAcquire()
}
