package exchange

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync keeps a signed-request clock aligned with the venue server.
type TimeSync struct {
	getServerTime func(ctx context.Context) (int64, error)
	offset        int64 // milliseconds offset (server - local)
	lastSync      time.Time
	syncInterval  time.Duration
	mu            sync.RWMutex
}

// NewTimeSync creates a time synchronization manager.
func NewTimeSync(getServerTime func(ctx context.Context) (int64, error)) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		syncInterval:  30 * time.Minute,
	}
}

// Start begins periodic time synchronization until ctx is cancelled.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		log.Printf("initial time sync failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					log.Printf("time sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync fetches server time once and updates the offset.
func (ts *TimeSync) Sync(ctx context.Context) error {
	localBefore := time.Now().UnixMilli()
	serverTime, err := ts.getServerTime(ctx)
	if err != nil {
		return err
	}
	localAfter := time.Now().UnixMilli()

	// Assume network latency is symmetric.
	localTime := localBefore + (localAfter-localBefore)/2

	ts.mu.Lock()
	ts.offset = serverTime - localTime
	ts.lastSync = time.Now()
	ts.mu.Unlock()

	log.Printf("time sync: offset=%dms", serverTime-localTime)
	return nil
}

// Now returns the current time in milliseconds adjusted for server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}
