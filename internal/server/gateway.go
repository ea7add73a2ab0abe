package server

import (
	"net/http"
)

// GatewayConn is the "http" service's streaming connection handle: it
// implements both dispatch.ServerRequest (so inline-transport writes reach
// the client) and dispatch.IOLoop (so a scheduled `finish` always runs
// after the write that precedes it, never racing it). All scheduled work
// runs on a single goroutine per request — the server's I/O loop
// (SPEC_FULL.md §5, Design Note 9).
type GatewayConn struct {
	w       http.ResponseWriter
	flusher http.Flusher
	tasks   chan func()
	done    chan struct{}
}

// NewGatewayConn wraps an http.ResponseWriter for one inbound gateway
// request and starts its I/O loop goroutine.
func NewGatewayConn(w http.ResponseWriter) *GatewayConn {
	flusher, _ := w.(http.Flusher)
	c := &GatewayConn{
		w:       w,
		flusher: flusher,
		tasks:   make(chan func(), 8),
		done:    make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *GatewayConn) loop() {
	for task := range c.tasks {
		task()
	}
	close(c.done)
}

// Write sends data immediately on the response stream.
func (c *GatewayConn) Write(data []byte) error {
	if _, err := c.w.Write(data); err != nil {
		return err
	}
	if c.flusher != nil {
		c.flusher.Flush()
	}
	return nil
}

// Finish closes out the response, ending the request. Must only be
// invoked via Schedule, which is how dispatch's inline transport always
// calls it.
func (c *GatewayConn) Finish() {
	close(c.tasks)
}

// Schedule queues fn to run on the connection's I/O loop goroutine, after
// every previously scheduled task.
func (c *GatewayConn) Schedule(fn func()) {
	c.tasks <- fn
}

// Wait blocks until Finish has run and the I/O loop has drained.
func (c *GatewayConn) Wait() {
	<-c.done
}
