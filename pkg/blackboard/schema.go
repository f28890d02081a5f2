package blackboard

import "fmt"

// Redis channel helpers
//
// Run events are fanned out over Redis Pub/Sub. Channels are namespaced by instance
// name so several planner deployments can share one Redis server.
//
// Channel pattern: parkplan:{instance_name}:{event_type}_events

// RunEventsChannel returns the Pub/Sub channel for all run events of an instance.
// Pattern: parkplan:{instance_name}:run_events
func RunEventsChannel(instanceName string) string {
	return fmt.Sprintf("parkplan:%s:run_events", instanceName)
}

// RunChannel returns the Pub/Sub channel carrying the events of a single run.
// Pattern: parkplan:{instance_name}:run:{run_id}:events
func RunChannel(instanceName, runID string) string {
	return fmt.Sprintf("parkplan:%s:run:%s:events", instanceName, runID)
}
