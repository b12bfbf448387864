package capture

import (
	"sort"

	"github.com/mikeyg42/plantwatch/internal/coords"
)

// UnavailableSet holds the slots skipped during one run, whichever gate they failed.
type UnavailableSet struct {
	slots map[int]struct{}
}

func NewUnavailableSet(slots ...int) *UnavailableSet {
	u := &UnavailableSet{slots: make(map[int]struct{})}
	for _, s := range slots {
		u.Add(s)
	}
	return u
}

// Add marks slot unavailable; out-of-range slots are ignored.
func (u *UnavailableSet) Add(slot int) {
	if slot < 0 || slot >= coords.Slots {
		return
	}
	u.slots[slot] = struct{}{}
}

func (u *UnavailableSet) Has(slot int) bool {
	_, ok := u.slots[slot]
	return ok
}

func (u *UnavailableSet) Len() int {
	return len(u.slots)
}

// Sorted returns the slots in ascending order.
func (u *UnavailableSet) Sorted() []int {
	out := make([]int, 0, len(u.slots))
	for s := range u.slots {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// Available returns every slot not in u, ascending.
func (u *UnavailableSet) Available() []int {
	out := make([]int, 0, coords.Slots-len(u.slots))
	for s := 0; s < coords.Slots; s++ {
		if !u.Has(s) {
			out = append(out, s)
		}
	}
	return out
}
