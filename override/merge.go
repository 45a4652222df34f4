package override

// FoldPatch folds patch for key into a copy of local and returns the copy.
// persisted is the saved map the local store was seeded from.
//
// A field changed by the patch takes the patch value. An unchanged field keeps
// an earlier unsaved local value, or the persisted value when the local value
// matches it, and is otherwise unset. Entries left with no set field are
// deleted. A patch that changes nothing returns local untouched.
func FoldPatch(local, persisted *OverrideMap, key string, patch Patch) *OverrideMap {
	out := local.Clone()
	if !patch.Changed() {
		return out
	}
	if out == nil {
		out = NewOverrideMap()
	}

	previous, _ := local.Get(key)
	saved, _ := persisted.Get(key)
	next := Override{
		Name:        foldField(patch.Name, previous.Name, saved.Name),
		Description: foldField(patch.Description, previous.Description, saved.Description),
	}
	if next.IsEmpty() {
		out.Delete(key)
		return out
	}
	out.Set(key, next)
	return out
}

// foldField resolves one field of an edit that changed at least one field.
func foldField(change, previous, persisted Field) Field {
	if !change.IsKeep() {
		return change.Stored()
	}
	if !previous.IsSet() {
		return Unset()
	}
	if !previous.Equal(persisted) {
		return previous
	}
	return persisted
}
