package override

// Patch is the per-field outcome of one saved edit. FieldKeep means the field
// did not change during the edit, FieldUnset asks for the stored override
// field to be removed, and FieldSet stores a value.
type Patch struct {
	Name        Field
	Description Field
}

// Changed reports whether any field changed during the edit.
func (p Patch) Changed() bool {
	return !p.Name.IsKeep() || !p.Description.IsKeep()
}

// PatchInput carries the values ComputePatch compares.
//
// Existing values are whatever was in effect before the edit: the local
// override, else the saved override, else the original. Persisted fields are
// the saved override for the tool, if any.
type PatchInput struct {
	DraftName            string
	DraftDescription     string
	OriginalName         string
	OriginalDescription  string
	ExistingName         string
	ExistingDescription  string
	PersistedName        Field
	PersistedDescription Field
}

// ComputePatch derives the minimal patch for one edit, field by field.
//
// A draft equal to the value already in effect produces no change. A draft
// equal to the original produces a removal, unless a saved override moved the
// field away from the original: then the original is set explicitly so the
// saved value cannot resurface. Any other draft is stored as-is.
func ComputePatch(in PatchInput) Patch {
	return Patch{
		Name:        patchField(in.DraftName, in.ExistingName, in.OriginalName, in.PersistedName),
		Description: patchField(in.DraftDescription, in.ExistingDescription, in.OriginalDescription, in.PersistedDescription),
	}
}

func patchField(draft, existing, original string, persisted Field) Field {
	if draft == existing {
		return Keep()
	}
	if draft != original {
		return SetTo(draft)
	}
	if saved, ok := persisted.Value(); ok && saved != original {
		return SetTo(original)
	}
	return Unset()
}
