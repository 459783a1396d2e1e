package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckAll pings every dependency concurrently and returns "ok" or the error text per name.
func CheckAll(ctx context.Context, timeout time.Duration, deps map[string]Pinger) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]string, len(deps))
	)
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		wg.Add(1)
		go func(name string, dep Pinger) {
			defer wg.Done()
			status := "ok"
			if err := dep.Ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			out[name] = status
			mu.Unlock()
		}(name, dep)
	}
	wg.Wait()
	return out
}

// Healthy reports whether every status is "ok" and lists the failing names.
func Healthy(statuses map[string]string) (bool, []string) {
	var failing []string
	for name, status := range statuses {
		if status != "ok" {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return len(failing) == 0, failing
}
