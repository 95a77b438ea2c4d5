package models

// MachineStatus defines whether a machine is free or rented.
type MachineStatus string

const (
	MachineStatusAvailable MachineStatus = "available"
	MachineStatusInSession MachineStatus = "in_session"
)

// Machine is a physical gaming station on the floor.
type Machine struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Status        MachineStatus `json:"status"`
	ActiveSession *Session      `json:"active_session,omitempty"`
}

// Consistent reports whether status agrees with the active session:
// in_session exactly when a session is attached.
func (m Machine) Consistent() bool {
	return (m.Status == MachineStatusInSession) == (m.ActiveSession != nil)
}

// Normalize derives the status from the presence of an active session.
func (m Machine) Normalize() Machine {
	if m.ActiveSession != nil {
		m.Status = MachineStatusInSession
	} else {
		m.Status = MachineStatusAvailable
	}
	return m
}

// WithSession returns a copy of the machine occupied by s.
func (m Machine) WithSession(s Session) Machine {
	m.ActiveSession = &s
	m.Status = MachineStatusInSession
	return m
}

// Released returns a copy of the machine with no session.
func (m Machine) Released() Machine {
	m.ActiveSession = nil
	m.Status = MachineStatusAvailable
	return m
}
