package procfs

import (
	"os/user"
	"sort"
	"strings"
	"sync"
)

// clockTicks is USER_HZ, which procfs also assumes when converting stat ticks.
const clockTicks = 100.0

// lookupUser allows tests to stub uid resolution.
var lookupUser = func(uid string) (string, error) {
	u, err := user.LookupId(uid)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// userCache resolves uids to names once per uid.
type userCache struct {
	mu    sync.Mutex
	names map[string]string
}

func newUserCache() *userCache {
	return &userCache{names: make(map[string]string)}
}

func (c *userCache) name(uid string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.names[uid]; ok {
		return name
	}
	name, err := lookupUser(uid)
	if err != nil || name == "" {
		name = uid
	}
	c.names[uid] = name
	return name
}

func ticksToSeconds(ticks uint) float64 {
	return float64(ticks) / clockTicks
}

func joinCmdline(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

type indexedCPU[T any] struct {
	index int64
	times T
}

// orderedCores flattens the per-core map (or slice) procfs returns into core order.
func orderedCores[T any](cores []indexedCPU[T]) []T {
	sort.Slice(cores, func(i, j int) bool { return cores[i].index < cores[j].index })
	out := make([]T, 0, len(cores))
	for _, c := range cores {
		out = append(out, c.times)
	}
	return out
}
