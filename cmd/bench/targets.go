package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

// generator produces a random mix of GET and PUT targets over a fixed key space.
type generator struct {
	base      string
	keys      int
	readRatio float64

	mu  sync.Mutex
	rnd *rand.Rand
	buf []byte
}

func newGenerator(base string, keys int, readRatio float64, valSize int, seed int64) *generator {
	if keys < 1 {
		keys = 1
	}
	return &generator{
		base:      base,
		keys:      keys,
		readRatio: readRatio,
		rnd:       rand.New(rand.NewSource(seed)),
		buf:       make([]byte, valSize),
	}
}

func (g *generator) Targeter() vegeta.Targeter {
	return func(t *vegeta.Target) error {
		g.mu.Lock()
		defer g.mu.Unlock()

		t.URL = fmt.Sprintf("%s/kv/k%06d", g.base, g.rnd.Intn(g.keys))
		if g.rnd.Float64() < g.readRatio {
			t.Method = http.MethodGet
			t.Body = nil
			t.Header = nil
			return nil
		}

		g.rnd.Read(g.buf)
		t.Method = http.MethodPut
		t.Body = append([]byte(nil), g.buf...)
		t.Header = http.Header{"Content-Type": []string{"application/octet-stream"}}
		return nil
	}
}
