package driver

import (
	"fmt"
	"sort"
	"sync"
)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]func() Driver)
)

// Register makes a driver available by name. It panics on duplicates,
// since that can only be a programming error in an init function.
func Register(name string, factory func() Driver) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("driver: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("driver: Register called twice for " + name)
	}
	factories[name] = factory
}

// New returns a new instance of the named driver.
func New(name string) (Driver, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, name, Drivers())
	}
	return factory(), nil
}

// Drivers returns the sorted names of registered drivers.
func Drivers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
