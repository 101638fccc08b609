package adapter

import (
	"context"
	"time"
)

// Locker is a small advisory-lock port used to serialize payment creation
// per document. The unique partial index on payments is the hard guarantee;
// the lock just avoids burning gateway orders on racing requests.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
