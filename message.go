// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import "time"

// Type tags a message for routing. Rules are indexed by Type, so the
// whole type space fits in a fixed table.
type Type uint8

// NumTypes is the size of the Type space.
const NumTypes = 256

// Message is a fixed-layout record passed by value through every ring.
//
// Producer and Seq are set once by the producer and never change.
// Seq increases per producer across all types it emits, so a single
// (producer, type) stream sees gaps whenever the producer interleaves types.
type Message struct {
	Seq       uint64 // Per-producer sequence, starting at 1
	Origin    int64  // Creation time, see Now
	Processed int64  // Set by the processor, 0 until then
	Producer  uint32
	Processor uint32 // Set by Stage-1 routing and stamped by the processor
	Type      Type
}

// Key identifies one ordered stream: a producer's messages of one type.
type Key struct {
	Producer uint32
	Type     Type
}

// Key returns the ordering key of m.
func (m *Message) Key() Key {
	return Key{Producer: m.Producer, Type: m.Type}
}

// epoch anchors Now on the monotonic clock.
var epoch = time.Now()

// Now returns nanoseconds elapsed on the monotonic clock since process start.
// All message timestamps use it, so differences are wall-clock independent.
func Now() int64 {
	return int64(time.Since(epoch))
}
