package override

import (
	"reflect"
	"testing"
)

func TestMergeCatalogOverlaysLiveDescriptions(t *testing.T) {
	got := MergeCatalog([]string{"edit_file", "make_dir"}, ServerTools{
		"edit_file": {Description: "Edit a file"},
		"search":    {Description: "Search files"},
	})

	want := Candidates{
		"edit_file": {Name: "edit_file", Description: "Edit a file"},
		"make_dir":  {Name: "make_dir"},
		"search":    {Name: "search", Description: "Search files"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeCatalog() = %#v, want %#v", got, want)
	}
	if names := got.Names(); !reflect.DeepEqual(names, []string{"edit_file", "make_dir", "search"}) {
		t.Fatalf("Names() = %v", names)
	}
}

func TestMergeCatalogNilServerTools(t *testing.T) {
	got := MergeCatalog([]string{"fetch"}, nil)
	if len(got) != 1 || got["fetch"].Description != "" {
		t.Fatalf("MergeCatalog(nil) = %#v, want fetch with empty description", got)
	}
}

func TestDrift(t *testing.T) {
	extra, missing := Drift([]string{"a", "b"}, ServerTools{"b": {}, "c": {}})
	if !reflect.DeepEqual(extra, []string{"c"}) {
		t.Fatalf("extra = %v, want [c]", extra)
	}
	if !reflect.DeepEqual(missing, []string{"a"}) {
		t.Fatalf("missing = %v, want [a]", missing)
	}

	extra, missing = Drift([]string{"a"}, nil)
	if len(extra) != 0 || len(missing) != 0 {
		t.Fatalf("Drift(nil) = %v, %v, want none", extra, missing)
	}
}

func TestResolveEndToEndDefaults(t *testing.T) {
	tools := ResolveInputs(Inputs{
		RegistryTools: []string{"make_dir", "edit_file"},
		ServerTools: ServerTools{
			"edit_file": {Description: "Edit a file"},
			"make_dir":  {Description: "Make a directory"},
		},
	})

	want := []ResolvedTool{
		{DisplayName: "edit_file", Description: "Edit a file", IsInitialEnabled: true},
		{DisplayName: "make_dir", Description: "Make a directory", IsInitialEnabled: true},
	}
	if !reflect.DeepEqual(tools, want) {
		t.Fatalf("ResolveInputs() = %#v, want %#v", tools, want)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("b", NameOverride("z"))
	overrides.Set("c", DescriptionOverride("custom"))
	in := Inputs{
		RegistryTools: []string{"a", "b", "c", "d"},
		ServerTools:   ServerTools{"a": {Description: "A"}, "b": {Description: "B"}},
		Overrides:     overrides,
		Allowlist:     []string{"a", "z"},
	}

	first := ResolveInputs(in)
	second := ResolveInputs(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ResolveInputs() not idempotent:\n%#v\n%#v", first, second)
	}
}

func TestResolveNameOverrideExcludesOriginal(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("fetch", NameOverride("fetch_custom"))

	tools := ResolveInputs(Inputs{RegistryTools: []string{"fetch"}, Overrides: overrides})
	if len(tools) != 1 {
		t.Fatalf("len(tools) = %d, want 1: %#v", len(tools), tools)
	}
	got := tools[0]
	if got.DisplayName != "fetch_custom" {
		t.Fatalf("DisplayName = %q, want fetch_custom", got.DisplayName)
	}
	if got.OriginalName != "fetch" {
		t.Fatalf("OriginalName = %q, want fetch", got.OriginalName)
	}
	if got.CanonicalName() != "fetch" {
		t.Fatalf("CanonicalName() = %q, want fetch", got.CanonicalName())
	}
	if got.OriginalDescription == nil || *got.OriginalDescription != "" {
		t.Fatalf("OriginalDescription = %v, want empty string", got.OriginalDescription)
	}
}

func TestResolveEnablementUsesDisplayName(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("fetch", NameOverride("fetch_custom"))

	tests := []struct {
		name      string
		allowlist []string
		want      bool
	}{
		{name: "nil allowlist", allowlist: nil, want: true},
		{name: "display name", allowlist: []string{"fetch_custom"}, want: true},
		{name: "stale canonical name", allowlist: []string{"fetch"}, want: false},
		{name: "empty allowlist", allowlist: []string{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools := ResolveInputs(Inputs{
				RegistryTools: []string{"fetch"},
				Overrides:     overrides,
				Allowlist:     tt.allowlist,
			})
			if tools[0].IsInitialEnabled != tt.want {
				t.Fatalf("IsInitialEnabled = %v, want %v", tools[0].IsInitialEnabled, tt.want)
			}
		})
	}
}

func TestResolveDescriptionOnlyOverride(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("edit_file", DescriptionOverride("Rewrite a file"))

	tools := ResolveInputs(Inputs{
		RegistryTools: []string{"edit_file"},
		ServerTools:   ServerTools{"edit_file": {Description: "Edit a file"}},
		Overrides:     overrides,
	})
	got := tools[0]
	if got.Description != "Rewrite a file" {
		t.Fatalf("Description = %q, want Rewrite a file", got.Description)
	}
	if got.Renamed() || got.OriginalDescription != nil {
		t.Fatalf("description-only override kept original identity: %#v", got)
	}
}

func TestResolveRenameWithDescription(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("edit_file", Override{Name: SetTo("patch_file"), Description: SetTo("Patch a file")})

	tools := ResolveInputs(Inputs{
		RegistryTools: []string{"edit_file"},
		ServerTools:   ServerTools{"edit_file": {Description: "Edit a file"}},
		Overrides:     overrides,
	})
	got := tools[0]
	if got.DisplayName != "patch_file" || got.Description != "Patch a file" {
		t.Fatalf("tool = %#v, want patch_file / Patch a file", got)
	}
	if got.OriginalDescription != nil {
		t.Fatalf("OriginalDescription = %q, want nil", *got.OriginalDescription)
	}
}

func TestResolveRenameKeepsOriginalDescription(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("edit_file", NameOverride("patch_file"))

	tools := ResolveInputs(Inputs{
		RegistryTools: []string{"edit_file"},
		ServerTools:   ServerTools{"edit_file": {Description: "Edit a file"}},
		Overrides:     overrides,
	})
	got := tools[0]
	if got.Description != "Edit a file" {
		t.Fatalf("Description = %q, want Edit a file", got.Description)
	}
	if got.OriginalDescription == nil || *got.OriginalDescription != "Edit a file" {
		t.Fatalf("OriginalDescription = %v, want Edit a file", got.OriginalDescription)
	}
}

func TestResolveCollisionFirstOverrideWins(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("beta", NameOverride("shared"))
	overrides.Set("alpha", NameOverride("shared"))

	tools := ResolveInputs(Inputs{RegistryTools: []string{"alpha", "beta"}, Overrides: overrides})
	if len(tools) != 1 {
		t.Fatalf("len(tools) = %d, want 1: %#v", len(tools), tools)
	}
	if tools[0].OriginalName != "beta" {
		t.Fatalf("OriginalName = %q, want beta (first inserted)", tools[0].OriginalName)
	}
}

func TestResolveOverrideReplacesBaseToolOfSameName(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("read_file", NameOverride("cat"))

	tools := ResolveInputs(Inputs{
		RegistryTools: []string{"cat", "read_file"},
		ServerTools:   ServerTools{"cat": {Description: "plain cat"}, "read_file": {Description: "Read a file"}},
		Overrides:     overrides,
	})
	if len(tools) != 1 {
		t.Fatalf("len(tools) = %d, want 1: %#v", len(tools), tools)
	}
	if tools[0].OriginalName != "read_file" || tools[0].Description != "Read a file" {
		t.Fatalf("tool = %#v, want renamed read_file", tools[0])
	}
}

func TestResolveStaleOverrideContributesNothing(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("gone", NameOverride("ghost"))
	overrides.Set("also_gone", DescriptionOverride("nothing"))

	tools := ResolveInputs(Inputs{RegistryTools: []string{"fetch"}, Overrides: overrides})
	if len(tools) != 1 || tools[0].DisplayName != "fetch" {
		t.Fatalf("tools = %#v, want only fetch", tools)
	}
}

func TestResolveEmptyNameOverrideFallsBackToOriginal(t *testing.T) {
	overrides := NewOverrideMap()
	overrides.Set("fetch", NameOverride(""))

	tools := ResolveInputs(Inputs{RegistryTools: []string{"fetch"}, Overrides: overrides})
	if len(tools) != 1 || tools[0].DisplayName != "fetch" || tools[0].Renamed() {
		t.Fatalf("tools = %#v, want unrenamed fetch", tools)
	}
}

func TestSortToolsUsesCollation(t *testing.T) {
	tools := []ResolvedTool{{DisplayName: "beta"}, {DisplayName: "Alpha"}, {DisplayName: "alpha"}, {DisplayName: "Zeta"}}
	SortTools(tools)

	var got []string
	for _, tool := range tools {
		got = append(got, tool.DisplayName)
	}
	want := []string{"alpha", "Alpha", "beta", "Zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortTools() = %v, want %v", got, want)
	}
}

func TestEnablementHelpers(t *testing.T) {
	tools := []ResolvedTool{
		{DisplayName: "a", IsInitialEnabled: true},
		{DisplayName: "z", OriginalName: "b", IsInitialEnabled: false},
	}
	flags := InitialFlags(tools)
	if !reflect.DeepEqual(flags, map[string]bool{"a": true, "b": false}) {
		t.Fatalf("InitialFlags() = %v", flags)
	}
	if HasChanges(flags, tools) {
		t.Fatal("HasChanges() = true before any toggle")
	}

	SetAll(flags, true)
	if !HasChanges(flags, tools) {
		t.Fatal("HasChanges() = false after enabling all")
	}
	if n := CountEnabled(flags); n != 2 {
		t.Fatalf("CountEnabled() = %d, want 2", n)
	}
	display := DisplayFlags(flags, tools)
	if !reflect.DeepEqual(display, map[string]bool{"a": true, "z": true}) {
		t.Fatalf("DisplayFlags() = %v", display)
	}
}
