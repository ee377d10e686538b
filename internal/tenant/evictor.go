// evictor.go houses the eviction loop for Pool.  Every EvictInterval it
// scans the map and removes:
//
//   - connections idle longer than IdleTTL
//   - least-recently-used connections when map size exceeds MaxEntries
//
// Eviction never races a fresh Acquire: the loop first swaps the entry to
// closing, then re-reads the last-used stamp; if an Acquire touched the
// connection in between, the swap is undone and the entry survives.
package tenant

import (
	"sort"
	"time"
)

func (p *Pool) evictLoop() {
	for {
		select {
		case <-p.stop:
			return
		case <-p.evictTicker.C:
		}

		now := time.Now().UnixNano()
		count := 0

		// ----------------------------------------------------------------
		// Idle eviction pass
		// ----------------------------------------------------------------
		p.m.Range(func(key, v any) bool {
			count++
			c := v.(*Conn)
			if c.idleFor(now) <= p.opts.IdleTTL {
				return true
			}
			if !c.markClosing() {
				return true
			}
			// Re-check after the swap: an Acquire may have touched the
			// conn between the idle computation and markClosing.
			if c.idleFor(time.Now().UnixNano()) <= p.opts.IdleTTL {
				c.reopen()
				return true
			}
			p.m.CompareAndDelete(key, v)
			count--
			go p.retire(c, "idle")
			return true
		})

		// ----------------------------------------------------------------
		// LRU eviction pass
		// ----------------------------------------------------------------
		if p.opts.MaxEntries <= 0 || count <= p.opts.MaxEntries {
			continue
		}
		type kv struct {
			key string
			c   *Conn
			at  int64
		}
		var all []kv
		p.m.Range(func(key, v any) bool {
			c := v.(*Conn)
			all = append(all, kv{key: key.(string), c: c, at: c.lastSeen.Load()})
			return true
		})
		sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
		for i := 0; i < len(all)-p.opts.MaxEntries; i++ {
			if !all[i].c.markClosing() {
				continue
			}
			p.m.CompareAndDelete(all[i].key, all[i].c)
			go p.retire(all[i].c, "lru")
		}
	}
}
