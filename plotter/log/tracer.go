package log

import (
	"flag"
	"fmt"
	"strings"
	"sync"
)

// Tracer logs verbose, per-subsystem output (e.g. every raw SignalK frame)
// only when enabled with -trace=<name>.
type Tracer struct {
	Enabled bool
	Prefix  string
}

func (t *Tracer) Log(message string) {
	if t.Enabled {
		Notice("%s", t.Prefix+message)
	}
}

func (t *Tracer) Logf(format string, args ...interface{}) {
	if t.Enabled {
		Notice("%s", t.Prefix+fmt.Sprintf(format, args...))
	}
}

// nameList is a flag.Value collecting comma separated names.
type nameList []string

func (n nameList) String() string { return strings.Join(n, ",") }

func (n *nameList) Set(value string) error {
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*n = append(*n, name)
		}
	}
	return nil
}

var (
	enabledTracers nameList

	tracersMu sync.Mutex
	tracers   = map[string]*Tracer{}
)

func init() {
	flag.Var(&enabledTracers, "trace", "comma-separated list of tracers to enable (signalk,ais,overlay,ws)")
}

// GetTracer returns the tracer registered under name, creating it disabled.
func GetTracer(name string) *Tracer {
	tracersMu.Lock()
	defer tracersMu.Unlock()
	if t, ok := tracers[name]; ok {
		return t
	}
	t := &Tracer{Prefix: "[" + name + "] "}
	tracers[name] = t
	return t
}

// RegisterTracers enables the tracers named with -trace.
func RegisterTracers() {
	for _, name := range enabledTracers {
		GetTracer(name).Enabled = true
	}
}
