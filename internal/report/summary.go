// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"code.hybscloud.com/msgroute"
	"github.com/bytedance/sonic"
)

// RunInfo identifies the run a summary describes.
type RunInfo struct {
	ID       string
	Scenario string
	Elapsed  time.Duration
}

// Summary is the final report of a run.
type Summary struct {
	RunID       string         `json:"run_id"`
	Scenario    string         `json:"scenario"`
	ElapsedSecs float64        `json:"elapsed_secs"`
	Stats       msgroute.Stats `json:"stats"`
	Lost        uint64         `json:"lost"`
	Throughput  float64        `json:"delivered_per_sec"`
	Latency     LatencyReport  `json:"latency_ns"`
	Passed      bool           `json:"passed"`
}

// Verdict returns "PASSED" or "FAILED".
func (s *Summary) Verdict() string {
	if s.Passed {
		return "PASSED"
	}
	return "FAILED"
}

// JSON encodes the summary.
func (s *Summary) JSON() ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(s, "", "  ")
}

// WriteText renders the summary for a terminal.
func (s *Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	st := &s.Stats

	fmt.Fprintf(tw, "=== PERFORMANCE SUMMARY ===\n")
	fmt.Fprintf(tw, "Scenario:\t%s\t\n", s.Scenario)
	fmt.Fprintf(tw, "Run:\t%s\t\n", s.RunID)
	fmt.Fprintf(tw, "Duration:\t%.2fs\t\n\n", s.ElapsedSecs)

	fmt.Fprintf(tw, "Produced:\t%d\t\n", st.Produced)
	fmt.Fprintf(tw, "Processed:\t%d\t\n", st.Processed)
	fmt.Fprintf(tw, "Delivered:\t%d\t\n", st.Delivered)
	fmt.Fprintf(tw, "Lost:\t%d\t\n", s.Lost)
	fmt.Fprintf(tw, "  producer drops:\t%d\t\n", st.ProducerDropped)
	fmt.Fprintf(tw, "  stage1 errors:\t%d\t\n", st.Stage1.Errors)
	fmt.Fprintf(tw, "  processor drops:\t%d\t\n", st.ProcessorDropped)
	fmt.Fprintf(tw, "  stage2 errors:\t%d\t\n", st.Stage2.Errors)
	fmt.Fprintf(tw, "In flight:\t%d\t\n", st.InFlight())
	fmt.Fprintf(tw, "Throughput:\t%.0f msg/s\t\n\n", s.Throughput)

	fmt.Fprintf(tw, "Latency (µs)\tp50\tp90\tp99\tp99.9\tmax\t\n")
	for _, row := range []struct {
		name string
		p    Percentiles
	}{
		{"Upstream", s.Latency.Upstream},
		{"Downstream", s.Latency.Downstream},
		{"Total", s.Latency.Total},
	} {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n", row.name,
			row.p.P50/1e3, row.p.P90/1e3, row.p.P99/1e3, row.p.P999/1e3, row.p.Max/1e3)
	}

	fmt.Fprintf(tw, "\nOrdering violations:\t%d\t\n", st.Violations)
	fmt.Fprintf(tw, "  on ordered types:\t%d\t\n", st.StrictViolations)
	fmt.Fprintf(tw, "Result:\t%s\t\n", s.Verdict())
	return tw.Flush()
}
