package keylock

import (
	"testing"
	"time"
)

func TestKeyLock(t *testing.T) {
	locker := NewKeyLock[int64]()

	h := locker.Lock(1, time.Second, time.Minute)

	startedWaiting := time.Now()
	go func(lh int64) {
		time.Sleep(time.Second)
		locker.Unlock(1, lh)
	}(h)

	h2 := locker.Lock(1, time.Minute, time.Minute)
	locker.Unlock(1, h2)

	if time.Since(startedWaiting) < time.Second {
		t.Error("Did not wait a second before locking key ", time.Since(startedWaiting))
	}
}

func TestKeyLockTTLExpiry(t *testing.T) {
	locker := NewKeyLock[string]()

	h := locker.Lock("a", time.Second, time.Millisecond*100)
	if h == -1 {
		t.Fatal("failed locking unheld key")
	}

	// the first lock expires, so this should go through without an unlock
	h2 := locker.Lock("a", time.Second, time.Minute)
	if h2 == -1 {
		t.Error("failed locking key with expired holder")
	}

	// unlocking with the stale handle should not release the new holder
	locker.Unlock("a", h)
	if got := locker.Lock("a", time.Millisecond*50, time.Minute); got != -1 {
		t.Error("stale handle released someone elses lock")
	}

	locker.Unlock("a", h2)
}

func TestKeyLockIndependentKeys(t *testing.T) {
	locker := NewKeyLock[int64]()

	h := locker.Lock(1, time.Second, time.Minute)
	h2 := locker.Lock(2, time.Millisecond*50, time.Minute)
	if h2 == -1 {
		t.Error("locking a different key blocked")
	}

	locker.Unlock(1, h)
	locker.Unlock(2, h2)
}

func BenchmarkKeyLock(b *testing.B) {
	locker := NewKeyLock[int64]()

	for i := 0; i < b.N; i++ {
		h := locker.Lock(1, time.Minute, time.Minute)
		locker.Unlock(1, h)
	}
}
