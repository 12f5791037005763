package proxy

import (
	"strings"
	"sync"
)

// console はロボットの標準出力。tickごとにExecCommandsへ吐き出す。
type console struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *console) take() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	c.buf.Reset()
	return s
}
