package bus

import "github.com/petal-labs/tooltailor/tool"

// Observer publishes commits and discoveries to a bus. Drift reports carry
// tool names and are published through DriftHandler instead.
type Observer struct {
	bus EventBus
}

// NewObserver returns an Observer publishing to eb.
func NewObserver(eb EventBus) *Observer {
	return &Observer{bus: eb}
}

func (o *Observer) ObserveApply(observation tool.ApplyObservation) {
	if observation.ErrorCode != "" {
		return
	}
	event := NewEvent(EventCustomizationApplied, observation.Server)
	event.Payload["enabled_tools"] = observation.EnabledTools
	event.Payload["total_tools"] = observation.TotalTools
	event.Payload["overrides"] = observation.Overrides
	event.Payload["allowlisted"] = observation.Allowlisted
	o.bus.Publish(event)
}

func (o *Observer) ObserveDiscovery(observation tool.DiscoveryObservation) {
	event := NewEvent(EventDiscoveryFinished, observation.Server)
	event.Payload["success"] = observation.Success
	event.Payload["tools"] = observation.Tools
	event.Payload["duration_ms"] = observation.DurationMS
	if observation.ErrorCode != "" {
		event.Payload["error_code"] = observation.ErrorCode
	}
	o.bus.Publish(event)
}

func (o *Observer) ObserveDrift(tool.DriftObservation) {}

// DriftHandler publishes drift watcher results. Reports without drift are
// not published.
func DriftHandler(eb EventBus) tool.DriftHandler {
	return func(report tool.DriftReport, err error) {
		if err != nil {
			event := NewEvent(EventDriftFailed, report.Server)
			event.Payload["error_code"] = tool.ErrorCode(err)
			event.Payload["error"] = err.Error()
			eb.Publish(event)
			return
		}
		if !report.HasDrift() {
			return
		}
		event := NewEvent(EventDriftDetected, report.Server)
		event.Payload["extra"] = report.Extra
		event.Payload["missing"] = report.Missing
		event.Payload["checked_at"] = report.CheckedAt
		eb.Publish(event)
	}
}

var _ tool.Observer = (*Observer)(nil)
