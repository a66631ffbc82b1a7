package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, s *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C:
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestCell_SubscriberGetsCurrentThenEveryUpdateInOrder(t *testing.T) {
	c := New(0)
	c.Set(1)
	s := c.Subscribe()
	defer s.Cancel()

	for i := 2; i <= 50; i++ {
		c.Set(i)
	}
	for want := 1; want <= 50; want++ {
		assert.Equal(t, want, recv(t, s))
	}
	assert.Equal(t, 50, c.Get())
}

func TestCell_SlowSubscriberDoesNotBlockWriter(t *testing.T) {
	c := New("a")
	s := c.Subscribe()
	defer s.Cancel()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			c.Set("x")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer blocked")
	}
}

func TestCell_CancelClosesChannel(t *testing.T) {
	c := New(1)
	s := c.Subscribe()
	assert.Equal(t, 1, c.Subscribers())
	s.Cancel()
	s.Cancel()
	assert.Equal(t, 0, c.Subscribers())
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed")
		}
	}
}

func TestCell_Update(t *testing.T) {
	c := New([]string{"a"})
	got := c.Update(func(v []string) []string { return append(append([]string{}, v...), "b") })
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{"a", "b"}, c.Get())
}
