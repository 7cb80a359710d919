package storage

// MergeDeep merges supplied over defaults and returns a new Configuration.
// Nested mappings are merged key by key; for any other value, including
// slices, the supplied value replaces the default. Neither input is
// modified.
func MergeDeep(supplied, defaults Configuration) Configuration {
	return Configuration(mergeMaps(supplied, defaults))
}

func mergeMaps(supplied, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(supplied)+len(defaults))
	for k, v := range defaults {
		out[k] = cloneValue(v)
	}
	for k, v := range supplied {
		sm, sok := asMap(v)
		dm, dok := asMap(out[k])
		if sok && dok {
			out[k] = mergeMaps(sm, dm)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Configuration:
		return m, true
	case Parameters:
		return m, true
	case Entity:
		return m, true
	}
	return nil, false
}

func cloneValue(v any) any {
	if m, ok := asMap(v); ok {
		return mergeMaps(m, nil)
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		for i := range s {
			out[i] = cloneValue(s[i])
		}
		return out
	}
	return v
}
