package observability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Counter is a monotonically increasing value
type Counter struct {
	mu    sync.Mutex
	name  string
	value float64
}

// NewCounter creates a new counter
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(delta float64) {
	if delta < 0 {
		return
	}
	c.mu.Lock()
	c.value += delta
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Counter) Name() string { return c.name }

// Timer accumulates durations
type Timer struct {
	mu    sync.Mutex
	name  string
	count uint64
	total time.Duration
	max   time.Duration
}

// NewTimer creates a new timer
func NewTimer(name string) *Timer {
	return &Timer{name: name}
}

// Observe records one duration
func (t *Timer) Observe(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.total += d
	if d > t.max {
		t.max = d
	}
}

// Since records the time elapsed since start
func (t *Timer) Since(start time.Time) {
	t.Observe(time.Since(start))
}

func (t *Timer) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Timer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *Timer) Max() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}

// MetricsRegistry holds the counters and timers of one process
type MetricsRegistry struct {
	mu       sync.RWMutex
	prefix   string
	counters map[string]*Counter
	timers   map[string]*Timer
}

// NewMetricsRegistry creates a new metrics registry
func NewMetricsRegistry(prefix string) *MetricsRegistry {
	return &MetricsRegistry{
		prefix:   prefix,
		counters: make(map[string]*Counter),
		timers:   make(map[string]*Timer),
	}
}

func (r *MetricsRegistry) key(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + "_" + name
}

// Counter returns the named counter, creating it on first use
func (r *MetricsRegistry) Counter(name string) *Counter {
	key := r.key(name)

	r.mu.RLock()
	c, ok := r.counters[key]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		return c
	}
	c = NewCounter(key)
	r.counters[key] = c
	return c
}

// Timer returns the named timer, creating it on first use
func (r *MetricsRegistry) Timer(name string) *Timer {
	key := r.key(name)

	r.mu.RLock()
	t, ok := r.timers[key]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[key]; ok {
		return t
	}
	t = NewTimer(key)
	r.timers[key] = t
	return t
}

// Snapshot returns the current counter values keyed by full name
func (r *MetricsRegistry) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Value()
	}
	return out
}

// Fields renders every metric as log fields
func (r *MetricsRegistry) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	for name, v := range r.Snapshot() {
		fields[name] = v
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, t := range r.timers {
		fields[name+"_count"] = t.Count()
		fields[name+"_total"] = t.Total().String()
	}
	return fields
}

// Export writes metrics in Prometheus text exposition format
func (r *MetricsRegistry) Export() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("# TYPE %s counter\n%s %g\n", name, name, r.counters[name].Value()))
	}

	names = names[:0]
	for name := range r.timers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := r.timers[name]
		sb.WriteString(fmt.Sprintf("# TYPE %s_seconds summary\n", name))
		sb.WriteString(fmt.Sprintf("%s_seconds_sum %g\n", name, t.Total().Seconds()))
		sb.WriteString(fmt.Sprintf("%s_seconds_count %d\n", name, t.Count()))
	}
	return sb.String()
}
