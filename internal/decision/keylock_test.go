package decision

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLocks_SerializesSameKey(t *testing.T) {
	k := newKeyLocks()
	unlock := k.lock("1:A")

	acquired := make(chan struct{})
	go func() {
		u := k.lock("1:A")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return k.len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestKeyLocks_DifferentKeysDoNotBlock(t *testing.T) {
	k := newKeyLocks()
	unlockA := k.lock("1:A")
	defer unlockA()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		k.lock("1:B")()
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	assert.Equal(t, 1, k.len())
}
