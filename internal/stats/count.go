// Package stats provides small atomic counters used for in-process metrics
// that don't need the full prometheus client (e.g. values embedded in log
// lines or returned from RPC status calls).
package stats

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
)

// Count is an atomically-updated int64 counter, safe for concurrent use
// without an external mutex.
type Count struct {
	n int64
}

var _ fmt.Stringer = (*Count)(nil)

func (c *Count) Add(n int64) {
	atomic.AddInt64(&c.n, n)
}

func (c *Count) Int64() int64 {
	return atomic.LoadInt64(&c.n)
}

func (c *Count) String() string {
	return strconv.FormatInt(c.Int64(), 10)
}

func (c *Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Int64())
}
