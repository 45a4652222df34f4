package override

import "slices"

// EditDraft is the state of the edit view. The zero value is a closed view.
type EditDraft struct {
	IsOpen                 bool         `json:"is_open"`
	Tool                   ResolvedTool `json:"tool"`
	Name                   string       `json:"name"`
	Description            string       `json:"description"`
	HasOverrideDescription bool         `json:"has_override_description"`
}

// Session holds the mutable state of one customization session: the local
// override store, per-tool enabled flags and the edit draft. It is owned by a
// single caller and is not safe for concurrent use.
//
// Enabled flags are keyed by canonical name so a tool renamed during the
// session keeps its toggle.
type Session struct {
	inputs  Inputs
	local   *OverrideMap
	flags   map[string]bool
	initial map[string]bool
	draft   EditDraft
}

// NewSession seeds a session from the persisted inputs.
func NewSession(in Inputs) *Session {
	s := &Session{}
	s.reset(in)
	return s
}

func (s *Session) reset(in Inputs) {
	s.inputs = Inputs{
		RegistryTools: slices.Clone(in.RegistryTools),
		ServerTools:   in.ServerTools,
		Overrides:     in.Overrides.Clone(),
		Allowlist:     slices.Clone(in.Allowlist),
	}
	s.local = in.Overrides.Clone()
	s.initial = InitialFlags(ResolveInputs(s.inputs))
	s.flags = make(map[string]bool, len(s.initial))
	for key, enabled := range s.initial {
		s.flags[key] = enabled
	}
	s.draft = EditDraft{}
}

// Inputs returns the persisted inputs the session was seeded from.
func (s *Session) Inputs() Inputs {
	return Inputs{
		RegistryTools: slices.Clone(s.inputs.RegistryTools),
		ServerTools:   s.inputs.ServerTools,
		Overrides:     s.inputs.Overrides.Clone(),
		Allowlist:     slices.Clone(s.inputs.Allowlist),
	}
}

// Tools resolves the catalog against the local override store. Each tool's
// IsInitialEnabled reports its enabled state when the session started.
func (s *Session) Tools() []ResolvedTool {
	tools := Resolve(s.inputs.Candidates(), s.inputs.ServerTools, s.local, s.inputs.Allowlist)
	for i := range tools {
		if enabled, ok := s.initial[tools[i].CanonicalName()]; ok {
			tools[i].IsInitialEnabled = enabled
		}
	}
	return tools
}

// LocalOverrides returns a copy of the unsaved override store.
func (s *Session) LocalOverrides() *OverrideMap {
	return s.local.Clone()
}

// EnabledFlags returns the current flags keyed by display name.
func (s *Session) EnabledFlags() map[string]bool {
	return DisplayFlags(s.flags, s.Tools())
}

// IsToolEnabled reports the current flag of the tool shown as displayName.
func (s *Session) IsToolEnabled(displayName string) (enabled, ok bool) {
	tool, ok := FindTool(s.Tools(), displayName)
	if !ok {
		return false, false
	}
	return s.flags[tool.CanonicalName()], true
}

// SetEnabled sets the flag of the tool shown as displayName. It reports
// whether such a tool exists.
func (s *Session) SetEnabled(displayName string, enabled bool) bool {
	tool, ok := FindTool(s.Tools(), displayName)
	if !ok {
		return false
	}
	s.flags[tool.CanonicalName()] = enabled
	return true
}

// SetAllEnabled sets every flag.
func (s *Session) SetAllEnabled(enabled bool) {
	SetAll(s.flags, enabled)
}

// HasChanges reports whether any flag differs from its initial state or the
// local override store differs from the persisted one.
func (s *Session) HasChanges() bool {
	for key, enabled := range s.flags {
		if initial, ok := s.initial[key]; ok && initial != enabled {
			return true
		}
	}
	return !s.local.Equal(s.inputs.Overrides)
}

// Draft returns the current edit draft.
func (s *Session) Draft() EditDraft {
	return s.draft
}

// OpenEdit opens the edit view for tool, seeding the draft from the local
// override first and from what the tool currently shows otherwise.
func (s *Session) OpenEdit(tool ResolvedTool) EditDraft {
	local, _ := s.local.Get(tool.CanonicalName())

	name := tool.DisplayName
	if value, ok := local.Name.Value(); ok {
		name = value
	}

	description := ""
	switch {
	case local.Description.IsSet():
		description, _ = local.Description.Value()
	case tool.Description != "":
		description = tool.Description
	case tool.OriginalDescription != nil:
		description = *tool.OriginalDescription
	}

	s.draft = EditDraft{
		IsOpen:                 true,
		Tool:                   tool,
		Name:                   name,
		Description:            description,
		HasOverrideDescription: local.Description.IsSet(),
	}
	return s.draft
}

// OpenTool opens the edit view for the tool shown as displayName. It reports
// whether such a tool exists.
func (s *Session) OpenTool(displayName string) (EditDraft, bool) {
	tool, ok := FindTool(s.Tools(), displayName)
	if !ok {
		return EditDraft{}, false
	}
	return s.OpenEdit(tool), true
}

// ChangeName updates the draft name. It does nothing while the view is closed.
func (s *Session) ChangeName(name string) {
	if s.draft.IsOpen {
		s.draft.Name = name
	}
}

// ChangeDescription updates the draft description. It does nothing while the
// view is closed.
func (s *Session) ChangeDescription(description string) {
	if s.draft.IsOpen {
		s.draft.Description = description
	}
}

// Save folds the draft into the local override store and closes the view.
// It returns the computed patch and false when no view was open.
func (s *Session) Save() (Patch, bool) {
	if !s.draft.IsOpen {
		return Patch{}, false
	}
	draft := s.draft
	s.draft = EditDraft{}

	key := draft.Tool.CanonicalName()
	originalName := key
	originalDesc := s.originalDescriptionOf(draft.Tool)

	local, hasLocal := s.local.Get(key)
	saved, _ := s.inputs.Overrides.Get(key)
	existingName := effectiveValue(local.Name, hasLocal, saved.Name, originalName)
	existingDesc := effectiveValue(local.Description, hasLocal, saved.Description, originalDesc)

	patch := ComputePatch(PatchInput{
		DraftName:            draft.Name,
		DraftDescription:     draft.Description,
		OriginalName:         originalName,
		OriginalDescription:  originalDesc,
		ExistingName:         existingName,
		ExistingDescription:  existingDesc,
		PersistedName:        saved.Name,
		PersistedDescription: saved.Description,
	})
	s.local = FoldPatch(s.local, s.inputs.Overrides, key, patch)
	return patch, true
}

// ResetTool saves an edit restoring the original name and description of
// the tool shown as displayName. Any open edit view is discarded. It reports
// false when no such tool exists.
func (s *Session) ResetTool(displayName string) (Patch, bool) {
	tool, ok := FindTool(s.Tools(), displayName)
	if !ok {
		return Patch{}, false
	}
	key := tool.CanonicalName()
	s.OpenEdit(tool)
	s.draft.Name = key
	s.draft.Description = s.originalDescriptionOf(tool)
	return s.Save()
}

// originalDescriptionOf resolves a tool's original description the way
// Resolve does: the catalog description, else the live description under the
// canonical name, else under the name it is shown as.
func (s *Session) originalDescriptionOf(tool ResolvedTool) string {
	key := tool.CanonicalName()
	return originalDescription(s.inputs.Candidates()[key], s.inputs.ServerTools, key, tool.DisplayName)
}

// Cancel closes the edit view without producing a patch.
func (s *Session) Cancel() {
	s.draft = EditDraft{}
}

// Apply reduces the session into the values to persist. The session is left
// untouched; call Promote once they are stored.
func (s *Session) Apply() ApplyResult {
	tools := s.Tools()
	return Reduce(DisplayFlags(s.flags, tools), s.local, len(tools))
}

// Promote makes result the persisted state and reseeds the session from it.
func (s *Session) Promote(result ApplyResult) {
	in := s.inputs
	in.Overrides = result.ToolsOverride
	in.Allowlist = result.ToolsAllowlist
	s.reset(in)
}

// Refresh replaces the catalog and live descriptions while keeping local
// edits. Tools that appear get flags from the persisted allowlist and tools
// that vanish lose theirs.
func (s *Session) Refresh(registryTools []string, serverTools ServerTools) {
	s.inputs.RegistryTools = slices.Clone(registryTools)
	s.inputs.ServerTools = serverTools

	baseline := ResolveInputs(s.inputs)
	present := make(map[string]struct{}, len(baseline))
	for _, tool := range baseline {
		key := tool.CanonicalName()
		present[key] = struct{}{}
		if _, ok := s.initial[key]; !ok {
			s.initial[key] = tool.IsInitialEnabled
			s.flags[key] = tool.IsInitialEnabled
		}
	}
	for _, tool := range s.Tools() {
		key := tool.CanonicalName()
		present[key] = struct{}{}
		if _, ok := s.initial[key]; !ok {
			enabled := IsEnabled(s.inputs.Allowlist, tool.DisplayName)
			s.initial[key] = enabled
			s.flags[key] = enabled
		}
	}
	for key := range s.flags {
		if _, ok := present[key]; !ok {
			delete(s.flags, key)
			delete(s.initial, key)
		}
	}
	if s.draft.IsOpen {
		if _, ok := present[s.draft.Tool.CanonicalName()]; !ok {
			s.draft = EditDraft{}
		}
	}
}

// effectiveValue returns the value in effect before an edit: the local
// field, else the saved field, else the original.
func effectiveValue(local Field, hasLocal bool, saved Field, original string) string {
	if hasLocal {
		if value, ok := local.Value(); ok {
			return value
		}
		return original
	}
	if value, ok := saved.Value(); ok {
		return value
	}
	return original
}
