package domain

// Record is one domain row as returned by the domain data store. Rows are
// schemaless at this layer; the entity registry bounds which fields may be
// written.
type Record map[string]interface{}

// Key returns the record's primary key, if present.
func (r Record) Key() (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	id, ok := r["id"]
	return id, ok
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WithValues returns a copy of the record with the given values applied.
// Unknown fields are applied as-is; the caller is responsible for having
// validated them against the entity registry.
func (r Record) WithValues(values Record) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}
