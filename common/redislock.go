package common

import (
	"time"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
)

var ErrMaxLockAttemptsExceeded = errors.Sentinel("max lock attempts exceeded")

// TryLockRedisKey attempts to lock the key, expiring after maxDur seconds so
// a crashed holder does not keep it locked forever.
func (c *Core) TryLockRedisKey(key string, maxDur int) (bool, error) {
	var resp string
	err := c.RedisPool.Do(radix.FlatCmd(&resp, "SET", key, true, "NX", "EX", maxDur))
	if err != nil {
		return false, err
	}

	return resp == "OK", nil
}

// BlockingLockRedisKey blocks until the key is locked, the attempt is
// abandoned with ErrMaxLockAttemptsExceeded after maxTryDuration.
func (c *Core) BlockingLockRedisKey(key string, maxTryDuration time.Duration, maxLockDur int) error {
	started := time.Now()
	sleepDur := time.Millisecond * 100
	maxSleep := time.Second
	for {
		if maxTryDuration != 0 && time.Since(started) > maxTryDuration {
			return ErrMaxLockAttemptsExceeded
		}

		locked, err := c.TryLockRedisKey(key, maxLockDur)
		if err != nil {
			return ErrWithCaller(err)
		}

		if locked {
			return nil
		}

		time.Sleep(sleepDur)
		sleepDur *= 2
		if sleepDur > maxSleep {
			sleepDur = maxSleep
		}
	}
}

func (c *Core) UnlockRedisKey(key string) {
	c.RedisPool.Do(radix.Cmd(nil, "DEL", key))
}
