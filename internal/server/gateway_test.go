package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayConnWriteFlushesImmediately(t *testing.T) {
	rec := httptest.NewRecorder()
	c := NewGatewayConn(rec)

	err := c.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestGatewayConnScheduleRunsInOrderBeforeFinish(t *testing.T) {
	rec := httptest.NewRecorder()
	c := NewGatewayConn(rec)

	var order []string
	c.Schedule(func() { order = append(order, "a") })
	c.Schedule(func() { order = append(order, "b") })
	c.Schedule(c.Finish)

	c.Wait()
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestGatewayConnWaitBlocksUntilFinish(t *testing.T) {
	rec := httptest.NewRecorder()
	c := NewGatewayConn(rec)

	finished := make(chan struct{})
	go func() {
		c.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("Wait returned before Finish was scheduled")
	case <-time.After(20 * time.Millisecond):
	}

	c.Schedule(c.Finish)
	<-finished
}
