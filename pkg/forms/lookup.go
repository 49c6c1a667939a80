package forms

import "sort"

// LookupTable maps values of a key field to the values of its dependent
// fields. Setting the key field to a known key overwrites every dependent
// field the entry carries.
type LookupTable struct {
	KeyField  string
	Dependent []string
	Entries   map[string]Values
}

// Keys returns the table keys in sorted order.
func (t *LookupTable) Keys() []string {
	keys := make([]string, 0, len(t.Entries))
	for k := range t.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply overwrites the dependent fields of values with the entry for key.
// It reports whether key was found; an unknown key leaves values untouched.
func (t *LookupTable) Apply(values Values, key string) bool {
	if t == nil {
		return false
	}
	entry, ok := t.Entries[key]
	if !ok {
		return false
	}
	for _, name := range t.Dependent {
		if v, ok := entry[name]; ok {
			values.Set(name, v)
		}
	}
	return true
}

// Clone returns a deep copy.
func (t *LookupTable) Clone() *LookupTable {
	if t == nil {
		return nil
	}
	out := &LookupTable{
		KeyField:  t.KeyField,
		Dependent: append([]string(nil), t.Dependent...),
		Entries:   make(map[string]Values, len(t.Entries)),
	}
	for k, v := range t.Entries {
		out.Entries[k] = v.Clone()
	}
	return out
}
