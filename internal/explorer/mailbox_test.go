package explorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMailboxFIFO(t *testing.T) {
	m := newMailbox[int]()
	for i := 0; i < 100; i++ {
		m.put(i)
	}
	assert.Equal(t, 100, m.len())
	for i := 0; i < 100; i++ {
		v, ok := m.tryGet()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := m.tryGet()
	assert.False(t, ok)
}

func TestMailboxGetBlocksUntilPut(t *testing.T) {
	m := newMailbox[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		m.put("hello")
	}()
	assert.Equal(t, "hello", m.get())
}

func TestMailboxWaitWakesOnPut(t *testing.T) {
	m := newMailbox[int]()
	start := time.Now()
	go m.put(1)
	m.wait(5 * time.Second)
	assert.Less(t, time.Since(start), 5*time.Second)

	start = time.Now()
	m.wait(10 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
