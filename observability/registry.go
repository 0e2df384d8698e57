package observability

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Named observers let config files select an output by string. Two
// built-ins cover the common cases: "slog" writes structured logs through
// the default logger and "noop" drops everything. RegisterObserver extends
// the set, for example with a MultiObserver that tees to several backends.
var (
	registryMu sync.RWMutex
	registry   = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	}
)

// GetObserver resolves a configured observer name. The empty name means
// the caller left the choice open, which resolves to "slog".
func GetObserver(name string) (Observer, error) {
	if name == "" {
		name = "slog"
	}

	registryMu.RLock()
	obs, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown observer %q (registered: %s)",
			name, strings.Join(registeredNames(), ", "))
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer.
func RegisterObserver(name string, observer Observer) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = observer
}

func registeredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
