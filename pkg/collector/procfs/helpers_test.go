package procfs

import (
	"errors"
	"testing"
)

func TestUserCacheResolvesOnceAndFallsBack(t *testing.T) {
	orig := lookupUser
	t.Cleanup(func() { lookupUser = orig })

	calls := map[string]int{}
	lookupUser = func(uid string) (string, error) {
		calls[uid]++
		if uid == "0" {
			return "root", nil
		}
		return "", errors.New("unknown uid")
	}

	cache := newUserCache()
	if name := cache.name("0"); name != "root" {
		t.Fatalf("expected root, got %q", name)
	}
	if name := cache.name("0"); name != "root" || calls["0"] != 1 {
		t.Fatalf("expected cached root, got %q with %d lookups", name, calls["0"])
	}
	if name := cache.name("4242"); name != "4242" {
		t.Fatalf("expected numeric fallback, got %q", name)
	}
	if cache.name("4242"); calls["4242"] != 1 {
		t.Fatalf("fallback not cached, %d lookups", calls["4242"])
	}
}

func TestTicksToSeconds(t *testing.T) {
	if got := ticksToSeconds(250); got != 2.5 {
		t.Fatalf("expected 2.5s, got %f", got)
	}
}

func TestOrderedCores(t *testing.T) {
	cores := []indexedCPU[string]{{2, "c"}, {0, "a"}, {1, "b"}}
	got := orderedCores(cores)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestJoinCmdline(t *testing.T) {
	if got := joinCmdline([]string{"/usr/bin/app", "--flag", "x"}); got != "/usr/bin/app --flag x" {
		t.Fatalf("unexpected cmdline %q", got)
	}
	if got := joinCmdline(nil); got != "" {
		t.Fatalf("expected empty cmdline, got %q", got)
	}
}
