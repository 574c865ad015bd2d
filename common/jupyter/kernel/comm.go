package kernel

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// CommHandler receives the data of the comm_open and comm_msg messages of comms opened on a target.
type CommHandler func(commId string, data map[string]interface{}) error

// CommManager keeps the registered comm targets and the comms currently open on them.
type CommManager struct {
	targets cmap.ConcurrentMap[string, CommHandler]
	// open maps comm ids to the name of their target.
	open cmap.ConcurrentMap[string, string]
}

func NewCommManager() *CommManager {
	return &CommManager{
		targets: cmap.New[CommHandler](),
		open:    cmap.New[string](),
	}
}

// RegisterTarget makes comms with the given target name acceptable.
func (m *CommManager) RegisterTarget(name string, handler CommHandler) {
	m.targets.Set(name, handler)
}

// UnregisterTarget removes a target. Comms already open on it stay open.
func (m *CommManager) UnregisterTarget(name string) {
	m.targets.Remove(name)
}

// Open records a comm on a registered target and passes it the initial data.
// It returns false if the target is unknown.
func (m *CommManager) Open(commId string, target string, data map[string]interface{}) (bool, error) {
	handler, ok := m.targets.Get(target)
	if !ok {
		return false, nil
	}

	m.open.Set(commId, target)
	if handler == nil {
		return true, nil
	}
	return true, handler(commId, data)
}

// Message passes data to the target of an open comm.
func (m *CommManager) Message(commId string, data map[string]interface{}) error {
	target, ok := m.open.Get(commId)
	if !ok {
		return ErrUnknownComm
	}

	handler, ok := m.targets.Get(target)
	if !ok || handler == nil {
		return nil
	}
	return handler(commId, data)
}

// Close forgets an open comm. It returns false if the comm was not open.
func (m *CommManager) Close(commId string) bool {
	_, ok := m.open.Pop(commId)
	return ok
}

// IsOpen returns true if the comm is open.
func (m *CommManager) IsOpen(commId string) bool {
	return m.open.Has(commId)
}

// NumOpen returns the number of open comms.
func (m *CommManager) NumOpen() int {
	return m.open.Count()
}
