// Package stats keeps the server's process counters in an expvar map and
// serves them as JSON.
package stats

import (
	"expvar"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	NumActiveRooms     = "NumActiveRooms"
	NumActiveClients   = "NumActiveClients"
	NumMutations       = "NumMutations"
	NumPersistFailures = "NumPersistFailures"

	uptimeKey = "Uptime"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater applies counter changes on a single goroutine so callers on
// the room and client goroutines never block on the map.
type StatsUpdater struct {
	vars     *expvar.Map
	deltas   chan counterDelta
	stopOnce sync.Once
}

type counterDelta struct {
	name  string
	delta int64
}

// NewStatsUpdater creates a stats updater serving its counters on
// GET /debug/vars. The map is not published to the global expvar registry,
// so more than one updater may exist per process.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:   new(expvar.Map).Init(),
		deltas: make(chan counterDelta, 512),
	}

	started := time.Now()
	su.vars.Set(uptimeKey, expvar.Func(func() any {
		return time.Since(started).Milliseconds()
	}))

	mux.HandleFunc("GET /debug/vars", su.serveVars)
	return su
}

// serveVars writes the map's own JSON rendering, keys sorted.
func (su *StatsUpdater) serveVars(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	io.WriteString(w, su.vars.String())
}

// apply drains queued deltas until Stop. A counter that was never registered
// is created on its first change.
func (su *StatsUpdater) apply() {
	for d := range su.deltas {
		su.vars.Add(d.name, d.delta)
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- counterDelta{name: name, delta: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- counterDelta{name: name, delta: -1}
}

// RegisterMetric publishes name at zero so it shows up before its first
// change.
func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

// Value reports the current value of a counter, or zero if it does not exist.
func (su *StatsUpdater) Value(name string) int64 {
	if v, ok := su.vars.Get(name).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

func (su *StatsUpdater) Run() {
	go su.apply()
}

func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() { close(su.deltas) })
}
