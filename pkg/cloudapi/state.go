package cloudapi

import (
	"slices"
)

// Machine states as shown to API clients.
const (
	StateProvisioning = "provisioning"
	StateReady        = "ready"
	StateRunning      = "running"
	StateStopping     = "stopping"
	StateStopped      = "stopped"
	StateOffline      = "offline"
	StateDeleted      = "deleted"
	StateFailed       = "failed"
	StateUnknown      = "unknown"
)

// upstreamStates maps each client visible state to VM API states it stands for.
var upstreamStates = map[string][]string{
	StateProvisioning: {"configured", "incomplete", "unavailable", "provisioning"},
	StateReady:        {"ready"},
	StateRunning:      {"running"},
	StateStopping:     {"halting", "stopping", "shutting_down"},
	StateStopped:      {"off", "down", "installed", "stopped"},
	StateOffline:      {"unreachable"},
	StateDeleted:      {"destroyed"},
	StateFailed:       {"failed"},
}

var displayStates = func() map[string]string {
	result := make(map[string]string)
	for display, states := range upstreamStates {
		for _, s := range states {
			result[s] = display
		}
	}
	return result
}()

// DisplayState maps a VM API state to the state shown to clients.
// States it does not know are reported as [StateUnknown] with ok set to false.
func DisplayState(upstream string) (state string, ok bool) {
	state, ok = displayStates[upstream]
	if !ok {
		return StateUnknown, false
	}

	return state, true
}

// UpstreamStates returns VM API states that are shown to clients as the given state.
// It returns nil for states that can not be filtered on.
func UpstreamStates(display string) []string {
	return slices.Clone(upstreamStates[display])
}

// DisplayStates returns a sorted list of states that clients can filter by.
func DisplayStates() []string {
	result := make([]string, 0, len(upstreamStates))
	for state := range upstreamStates {
		result = append(result, state)
	}
	slices.Sort(result)
	return result
}
