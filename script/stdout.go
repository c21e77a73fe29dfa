// ABOUTME: Stdout tee: swaps os.Stdout for a pipe that mirrors to the original and buffers everything.
// ABOUTME: The buffer becomes the uploaded script log; Restore puts the real stdout back.
package script

import (
	"bytes"
	"os"
	"sync"
)

// StdoutCapture tees process stdout into an in-memory buffer.
type StdoutCapture struct {
	orig *os.File
	r, w *os.File

	mu   sync.Mutex
	buf  bytes.Buffer
	done chan struct{}
}

// CaptureStdout replaces os.Stdout with the write end of a pipe. Everything
// written still reaches the original stdout.
func CaptureStdout() (*StdoutCapture, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	c := &StdoutCapture{orig: os.Stdout, r: r, w: w, done: make(chan struct{})}
	os.Stdout = w
	go c.tee()
	return c, nil
}

func (c *StdoutCapture) tee() {
	defer close(c.done)
	chunk := make([]byte, 4096)
	for {
		n, err := c.r.Read(chunk)
		if n > 0 {
			c.orig.Write(chunk[:n])
			c.mu.Lock()
			c.buf.Write(chunk[:n])
			c.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Restore puts the original stdout back and returns everything captured.
// Safe to call once; the pipe drains before returning.
func (c *StdoutCapture) Restore() string {
	os.Stdout = c.orig
	c.w.Close()
	<-c.done
	c.r.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Contents returns what has been captured so far without restoring.
func (c *StdoutCapture) Contents() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
