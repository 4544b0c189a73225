// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// This file contains examples that run workers on their own goroutines.
// Ring hand-off is ordered by atomix operations, which the race detector
// does not model. The examples are correct; they're excluded from race
// testing.

package msgroute_test

import (
	"fmt"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/msgroute"
)

// Example_workers runs each stage on its own OS thread and waits for
// every message to be delivered before stopping.
func Example_workers() {
	rules := msgroute.NewRuleTable(
		[]msgroute.Stage1Rule{{Type: 0, Processors: []int{0}}},
		[]msgroute.Stage2Rule{{Type: 0, Strategy: 0, OrderingRequired: true}},
	)
	producerRing := []*msgroute.Queue{msgroute.NewQueue(64)}
	procIn := []*msgroute.Queue{msgroute.NewQueue(64)}
	procOut := []*msgroute.Queue{msgroute.NewQueue(64)}
	strategyRing := []*msgroute.Queue{msgroute.NewQueue(64)}

	// Generous retry bounds so a descheduled consumer never causes a drop.
	routing := msgroute.RouterConfig{Retries: 1 << 20, Wait: msgroute.WaitBackoff}
	stage1 := msgroute.NewStage1Router(routing, rules, producerRing, procIn)
	processors := msgroute.NewProcessorPool(msgroute.ProcessorConfig{Retries: 1 << 20, Wait: msgroute.WaitBackoff}, procIn, procOut)
	stage2 := msgroute.NewStage2Router(routing, rules, procOut, strategyRing)
	strategies := msgroute.NewStrategyPool(msgroute.StrategyConfig{Rules: rules}, strategyRing)

	strategies.StartAll()
	stage2.Start()
	processors.StartAll()
	stage1.Start()

	// Feed from this goroutine as the single producer.
	backoff := iox.Backoff{}
	for seq := uint64(1); seq <= 1000; seq++ {
		m := msgroute.Message{Seq: seq, Origin: msgroute.Now()}
		for producerRing[0].Enqueue(&m) != nil {
			backoff.Wait()
		}
		backoff.Reset()
	}
	for strategies.Delivered() < 1000 {
		backoff.Wait()
	}

	stage1.Stop()
	processors.StopAll()
	stage2.Stop()
	strategies.StopAll()
	stage1.Wait()
	processors.Wait()
	stage2.Wait()
	strategies.Wait()

	fmt.Println("delivered:", strategies.Delivered())
	fmt.Println("violations:", strategies.Violations())
	fmt.Println("routing errors:", stage1.Errors()+stage2.Errors())

	// Output:
	// delivered: 1000
	// violations: 0
	// routing errors: 0
}
