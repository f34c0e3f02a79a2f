package events

import "sync"

var (
	globalBus     EventBus
	globalBusLock sync.RWMutex
)

// SetGlobalEventBus sets the global event bus instance
func SetGlobalEventBus(bus EventBus) {
	globalBusLock.Lock()
	defer globalBusLock.Unlock()
	globalBus = bus
}

// GetGlobalEventBus returns the global event bus instance
func GetGlobalEventBus() EventBus {
	globalBusLock.RLock()
	defer globalBusLock.RUnlock()
	return globalBus
}

// PublishGlobal publishes on the global bus when one is set. Modules use
// this so they keep working in CLI invocations where no bus runs.
func PublishGlobal(event Event) {
	if bus := GetGlobalEventBus(); bus != nil {
		bus.Publish(event)
	}
}
