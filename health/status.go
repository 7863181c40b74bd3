// Package health tracks liveness and readiness of the pieces a process is
// built from: its nodes, its transport connection, and its clock source.
package health

import (
	"time"
)

// Condition is the health state of one component
type Condition string

// Component health states. Degraded means operating with reduced
// capability, such as a transport mid-reconnect.
const (
	ConditionHealthy   Condition = "healthy"
	ConditionDegraded  Condition = "degraded"
	ConditionUnhealthy Condition = "unhealthy"
)

// Status is a point-in-time health report for one component
type Status struct {
	Component   string    `json:"component"`
	Condition   Condition `json:"condition"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// Healthy reports whether the component is fully operational
func (s Status) Healthy() bool {
	return s.Condition == ConditionHealthy
}

// NewHealthy builds a healthy status
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Condition: ConditionHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded builds a degraded status
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Condition: ConditionDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy builds an unhealthy status
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Condition: ConditionUnhealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate folds component statuses into one system status. The worst
// condition wins: any unhealthy component makes the system unhealthy, any
// degraded one makes it degraded, and an empty set is healthy.
func Aggregate(system string, statuses []Status) Status {
	condition := ConditionHealthy
	message := "all components healthy"

	for _, s := range statuses {
		switch s.Condition {
		case ConditionUnhealthy:
			condition = ConditionUnhealthy
			message = s.Component + ": " + s.Message
		case ConditionDegraded:
			if condition == ConditionHealthy {
				condition = ConditionDegraded
				message = s.Component + ": " + s.Message
			}
		}
		if condition == ConditionUnhealthy {
			break
		}
	}

	return Status{
		Component:   system,
		Condition:   condition,
		Message:     message,
		Timestamp:   time.Now(),
		SubStatuses: statuses,
	}
}
