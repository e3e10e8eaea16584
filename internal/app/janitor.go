/**
 * @description
 * Cron-driven janitor for the in-memory balance cache. Stale entries are
 * already ignored at read time; the sweep just keeps the map bounded in
 * long-lived processes. Only the in-memory backend needs this — Redis expires
 * entries on its own.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: Job scheduling.
 * - internal/cache: The in-memory cache being swept.
 */

package app

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/fondeo/balance-service/internal/cache"
)

// StartCacheJanitor schedules a periodic sweep of stale entries and starts the
// scheduler. The returned cron should be stopped on shutdown.
func StartCacheJanitor(schedule string, mem *cache.MemoryCache) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		if swept := mem.Sweep(); swept > 0 {
			log.Printf("level=info component=janitor msg=\"stale cache entries swept\" count=%d", swept)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Printf("level=info component=janitor msg=\"cache janitor scheduled\" schedule=%q", schedule)
	return c, nil
}
