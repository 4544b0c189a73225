// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package msgroute

// RaceEnabled is true when the race detector is active.
// Pipeline tests with concurrent workers skip themselves under it because
// ring payload hand-off is ordered by atomics the detector cannot follow.
const RaceEnabled = true
