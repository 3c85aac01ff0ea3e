package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/olekukonko/tablewriter"
)

// latencies are recorded in microseconds, up to one minute
const (
	minLatencyUs = 1
	maxLatencyUs = int64(time.Minute / time.Microsecond)
)

type latencyRecorder struct {
	mu    sync.Mutex
	hists map[string]*hdrhistogram.Histogram
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{hists: make(map[string]*hdrhistogram.Histogram)}
}

func (r *latencyRecorder) Record(op string, d time.Duration) {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hists[op]
	if !ok {
		h = hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
		r.hists[op] = h
	}
	_ = h.RecordValue(us)
}

func (r *latencyRecorder) Count(op string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hists[op]; ok {
		return h.TotalCount()
	}
	return 0
}

// Render prints one row per operation with count and latency percentiles.
func (r *latencyRecorder) Render(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]string, 0, len(r.hists))
	for op := range r.hists {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Operation", "Count", "Mean(us)", "P50(us)", "P99(us)", "Max(us)"})
	for _, op := range ops {
		h := r.hists[op]
		table.Append([]string{
			op,
			fmt.Sprint(h.TotalCount()),
			fmt.Sprintf("%.1f", h.Mean()),
			fmt.Sprint(h.ValueAtQuantile(50)),
			fmt.Sprint(h.ValueAtQuantile(99)),
			fmt.Sprint(h.Max()),
		})
	}
	table.Render()
}
