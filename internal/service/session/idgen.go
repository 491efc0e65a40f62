package session

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Generator produces fallback session ids for audio_stream_start messages
// that omit session_id. Ids are unique within the process and carry the
// process start time to keep restarts from colliding.
type Generator struct {
	counter uint64
	epoch   int64
}

func NewGenerator() *Generator {
	return &Generator{epoch: time.Now().UnixNano()}
}

func (g *Generator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("sess-%x-%d", g.epoch, n)
}
