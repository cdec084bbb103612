package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockAfter(t *testing.T) {
	c := &Mock{MockNow: time.Unix(1000, 0)}
	ch, _ := c.After(time.Second)
	_, stop := c.After(2 * time.Second)
	assert.Equal(t, 2, c.Pending())

	c.Advance(999 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(time.Millisecond)
	select {
	case fired := <-ch:
		assert.Equal(t, time.Unix(1001, 0), fired)
	default:
		t.Fatal("timer did not fire")
	}

	stop()
	assert.Equal(t, 0, c.Pending())
}

func TestRealAfter(t *testing.T) {
	c := &Real{}
	ch, stop := c.After(time.Millisecond)
	defer stop()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
