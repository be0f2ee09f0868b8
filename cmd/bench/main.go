package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

type summary struct {
	Requests    uint64                `json:"requests"`
	Rate        float64               `json:"rate_req_per_sec"`
	Success     float64               `json:"success_ratio"`
	Latencies   vegeta.LatencyMetrics `json:"latencies"`
	StatusCodes map[string]int        `json:"status_codes"`
	Errors      []string              `json:"errors"`
	Duration    time.Duration         `json:"duration"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server address")
	rate := flag.Int("rate", 500, "requests per second")
	dur := flag.Duration("d", 10*time.Second, "attack duration")
	keys := flag.Int("keys", 5000, "distinct keys")
	readRatio := flag.Float64("read", 0.8, "fraction of requests that are GETs")
	valSize := flag.Int("val", 128, "value size bytes")
	timeout := flag.Duration("timeout", 5*time.Second, "per request timeout")
	flag.Parse()

	gen := newGenerator(*addr, *keys, *readRatio, *valSize, time.Now().UnixNano())
	att := vegeta.NewAttacker(vegeta.Timeout(*timeout))

	var m vegeta.Metrics
	for res := range att.Attack(gen.Targeter(), vegeta.Rate{Freq: *rate, Per: time.Second}, *dur, "zephyr") {
		m.Add(res)
	}
	m.Close()

	out, _ := json.MarshalIndent(summary{
		Requests:    m.Requests,
		Rate:        m.Rate,
		Success:     m.Success,
		Latencies:   m.Latencies,
		StatusCodes: m.StatusCodes,
		Errors:      m.Errors,
		Duration:    m.Duration,
	}, "", "  ")
	fmt.Println(string(out))

	// 503 is backpressure, anything else non-2xx/404 is a failure
	for code := range m.StatusCodes {
		switch code {
		case "200", "201", "204", "404", "503":
		default:
			fmt.Fprintf(os.Stderr, "unexpected status %s\n", code)
			os.Exit(1)
		}
	}
}
