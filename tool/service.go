package tool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/petal-labs/tooltailor/override"
)

// ServiceConfig configures a CustomizationService.
type ServiceConfig struct {
	Catalog Catalog
	Store   Store
	// Discoverer fetches live descriptions. Nil resolves against the
	// catalog only.
	Discoverer Discoverer
	Observer   Observer
	Logger     *slog.Logger
	Now        func() time.Time
}

// CustomizationService gathers the engine inputs for a server, hands out
// sessions and persists their results.
type CustomizationService struct {
	catalog    Catalog
	store      Store
	discoverer Discoverer
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// NewCustomizationService validates cfg and fills defaults.
func NewCustomizationService(cfg ServiceConfig) (*CustomizationService, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("tool: customization service catalog is nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("tool: customization service store is nil")
	}
	if cfg.Observer == nil {
		cfg.Observer = NoopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CustomizationService{
		catalog:    cfg.Catalog,
		store:      cfg.Store,
		discoverer: cfg.Discoverer,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}, nil
}

// Servers lists configured servers ordered by name.
func (s *CustomizationService) Servers() []ServerSpec {
	return s.catalog.Servers()
}

// Server returns the spec for name or a SERVER_NOT_FOUND error.
func (s *CustomizationService) Server(name string) (ServerSpec, error) {
	spec, ok := s.catalog.Server(name)
	if !ok {
		return ServerSpec{}, ServerNotFound(name)
	}
	return spec, nil
}

// Customization returns the stored record for server.
func (s *CustomizationService) Customization(ctx context.Context, server string) (Customization, bool, error) {
	if _, err := s.Server(server); err != nil {
		return Customization{}, false, err
	}
	c, ok, err := s.store.Get(ctx, server)
	if err != nil {
		return Customization{}, false, storeError(err, "load customization")
	}
	return c, ok, nil
}

// Load gathers the four engine inputs for server. A discovery failure is
// logged and degrades to catalog-only resolution.
func (s *CustomizationService) Load(ctx context.Context, server string) (override.Inputs, error) {
	spec, err := s.Server(server)
	if err != nil {
		return override.Inputs{}, err
	}
	saved, _, err := s.Customization(ctx, server)
	if err != nil {
		return override.Inputs{}, err
	}
	return override.Inputs{
		RegistryTools: spec.Tools,
		ServerTools:   s.discover(ctx, spec),
		Overrides:     saved.ToolsOverride,
		Allowlist:     saved.ToolsAllowlist,
	}, nil
}

// discover returns live descriptions or nil when they are unavailable.
func (s *CustomizationService) discover(ctx context.Context, spec ServerSpec) override.ServerTools {
	if s.discoverer == nil || spec.Transport.IsZero() {
		return nil
	}
	started := s.now()
	tools, err := s.discoverer.Discover(ctx, spec)
	observation := DiscoveryObservation{
		Server:     spec.Name,
		Tools:      len(tools),
		DurationMS: s.now().Sub(started).Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		observation.ErrorCode = ErrorCode(err)
		s.observer.ObserveDiscovery(observation)
		s.logger.Warn("live tool discovery failed; using catalog only", "server", spec.Name, "error", err)
		return nil
	}
	s.observer.ObserveDiscovery(observation)
	s.logger.Debug("discovered live tools", "server", spec.Name, "tools", len(tools))
	return tools
}

// Resolve returns the display-ready tool list for server.
func (s *CustomizationService) Resolve(ctx context.Context, server string) ([]override.ResolvedTool, error) {
	in, err := s.Load(ctx, server)
	if err != nil {
		return nil, err
	}
	return override.ResolveInputs(in), nil
}

// Open starts a session seeded from server's current state.
func (s *CustomizationService) Open(ctx context.Context, server string) (*override.Session, error) {
	in, err := s.Load(ctx, server)
	if err != nil {
		return nil, err
	}
	return override.NewSession(in), nil
}

// Commit reduces session, validates and stores the result, then promotes
// it as the session's persisted state.
func (s *CustomizationService) Commit(ctx context.Context, server string, session *override.Session) (Customization, error) {
	if _, err := s.Server(server); err != nil {
		return Customization{}, err
	}
	started := s.now()
	result := session.Apply()
	record := Customization{
		Server:         server,
		ToolsAllowlist: result.ToolsAllowlist,
		ToolsOverride:  result.ToolsOverride,
	}

	flags := session.EnabledFlags()
	observation := ApplyObservation{
		Server:       server,
		EnabledTools: override.CountEnabled(flags),
		TotalTools:   len(flags),
		Overrides:    result.ToolsOverride.Len(),
		Allowlisted:  result.ToolsAllowlist != nil,
	}

	stored, err := s.put(ctx, record)
	observation.DurationMS = s.now().Sub(started).Milliseconds()
	if err != nil {
		observation.ErrorCode = ErrorCode(err)
		s.observer.ObserveApply(observation)
		return Customization{}, err
	}
	s.observer.ObserveApply(observation)
	session.Promote(result)

	s.logger.Info("customization applied",
		"server", server,
		"revision", stored.Revision,
		"enabled", observation.EnabledTools,
		"total", observation.TotalTools,
		"overrides", observation.Overrides,
	)
	return stored, nil
}

func (s *CustomizationService) put(ctx context.Context, record Customization) (Customization, error) {
	if diags := ValidateCustomization(record); hasErrors(diags) {
		return Customization{}, validationError("customization failed validation", diags)
	}
	stored, err := s.store.Put(ctx, record)
	if err != nil {
		return Customization{}, storeError(err, "save customization")
	}
	return stored, nil
}

// Reset removes every customization of server.
func (s *CustomizationService) Reset(ctx context.Context, server string) error {
	if _, err := s.Server(server); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, server); err != nil {
		return storeError(err, "delete customization")
	}
	s.logger.Info("customization reset", "server", server)
	return nil
}

// Export returns server's stored customization as an overlay.
func (s *CustomizationService) Export(ctx context.Context, server string) (Overlay, error) {
	c, _, err := s.Customization(ctx, server)
	if err != nil {
		return Overlay{}, err
	}
	c.Server = server
	return NewOverlay(c), nil
}

// Import validates overlay and stores it as its server's customization.
// Warnings are returned alongside the stored record.
func (s *CustomizationService) Import(ctx context.Context, overlay Overlay) (Customization, []Diagnostic, error) {
	diags := ValidateOverlay(overlay)
	if hasErrors(diags) {
		return Customization{}, diags, validationError("overlay failed validation", diags)
	}
	record := overlay.Customization()
	if _, err := s.Server(record.Server); err != nil {
		return Customization{}, diags, err
	}
	record.ToolsOverride = override.FilterOverrides(record.ToolsOverride)
	stored, err := s.put(ctx, record)
	if err != nil {
		return Customization{}, diags, err
	}
	s.logger.Info("overlay imported", "server", stored.Server, "revision", stored.Revision)
	return stored, diags, nil
}
