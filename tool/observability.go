package tool

// ApplyObservation captures one committed customization.
type ApplyObservation struct {
	Server       string
	EnabledTools int
	TotalTools   int
	Overrides    int
	// Allowlisted is true when an explicit allowlist was persisted.
	Allowlisted bool
	DurationMS  int64
	ErrorCode   string
}

// DiscoveryObservation captures one live discovery attempt.
type DiscoveryObservation struct {
	Server     string
	Tools      int
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// DriftObservation captures one drift check.
type DriftObservation struct {
	Server  string
	Extra   int
	Missing int
}

// Observer receives customization events. Implementations are passed to the
// service explicitly.
type Observer interface {
	ObserveApply(observation ApplyObservation)
	ObserveDiscovery(observation DiscoveryObservation)
	ObserveDrift(observation DriftObservation)
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) ObserveApply(ApplyObservation)         {}
func (NoopObserver) ObserveDiscovery(DiscoveryObservation) {}
func (NoopObserver) ObserveDrift(DriftObservation)         {}

// MultiObserver forwards every event to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) ObserveApply(observation ApplyObservation) {
	for _, o := range m {
		o.ObserveApply(observation)
	}
}

func (m MultiObserver) ObserveDiscovery(observation DiscoveryObservation) {
	for _, o := range m {
		o.ObserveDiscovery(observation)
	}
}

func (m MultiObserver) ObserveDrift(observation DriftObservation) {
	for _, o := range m {
		o.ObserveDrift(observation)
	}
}

var (
	_ Observer = NoopObserver{}
	_ Observer = MultiObserver(nil)
)
