package common

import "time"

// ComponentStatus is the body of /health and /ready.
type ComponentStatus struct {
	Name      string    `json:"component"`
	Status    string    `json:"status"`
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}
