package memorystore

import (
	"sync"
	"time"
)

// timingWheel is a fixed-size ring of expiry buckets (spec §4.C, §9). Each
// bucket holds the set of keys whose expiry second hashes to that slot.
// advance() walks every slot between the previous and current second,
// tolerating clock jumps and missed ticks, and reports which keys in those
// slots have actually expired (a slot can hold keys from more than one
// wheel revolution, so membership alone doesn't imply expiry - the caller
// double-checks against the real expiry time, same as the lazy check on
// read).
type timingWheel struct {
	mu      sync.Mutex
	slots   []map[string]struct{}
	cursor  int64 // last processed second, as a wheel-slot-independent epoch second
	started bool
}

func newTimingWheel(slotCount int) *timingWheel {
	if slotCount <= 0 {
		slotCount = 3600
	}
	slots := make([]map[string]struct{}, slotCount)
	for i := range slots {
		slots[i] = make(map[string]struct{})
	}
	return &timingWheel{slots: slots}
}

func (w *timingWheel) slotFor(expiry time.Time) int {
	sec := expiry.Unix()
	n := int64(len(w.slots))
	return int(((sec % n) + n) % n)
}

func (w *timingWheel) schedule(key string, expiry time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.slots[w.slotFor(expiry)][key] = struct{}{}
}

func (w *timingWheel) unschedule(key string, expiry time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.slots[w.slotFor(expiry)], key)
}

// advance processes every slot between the wheel's last cursor and the
// current second (inclusive), returning the union of all keys that were
// resident in those slots. The caller is responsible for checking each
// candidate's actual expiry before removing it from the backing map - the
// wheel only narrows the search.
func (w *timingWheel) advance(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	nowSec := now.Unix()
	if !w.started {
		w.cursor = nowSec
		w.started = true
		return nil
	}
	if nowSec <= w.cursor {
		return nil
	}

	var candidates []string
	n := int64(len(w.slots))
	// Cap the number of slots walked to the wheel size: a long pause still
	// only needs to visit each bucket once.
	steps := nowSec - w.cursor
	if steps > n {
		steps = n
	}
	for i := int64(1); i <= steps; i++ {
		sec := w.cursor + i
		slotIdx := int(((sec % n) + n) % n)
		slot := w.slots[slotIdx]
		for key := range slot {
			candidates = append(candidates, key)
		}
	}
	w.cursor = nowSec
	return candidates
}
