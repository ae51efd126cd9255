package field

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedResponse is returned when a model response is not a JSON object.
var ErrMalformedResponse = errors.New("field: response is not a JSON object")

// ErrNoDescriptors is returned when a fill pass is started without fields.
var ErrNoDescriptors = errors.New("field: no field descriptors")

// Response is the flat key/value bag returned by the model. Keys keep the
// order in which they appeared so that tie-breaks between equally good keys
// are deterministic. Duplicate keys keep the last value at the first position.
type Response struct {
	keys   []string
	values map[string]Scalar
}

// NewResponse builds an empty Response.
func NewResponse() Response {
	return Response{values: make(map[string]Scalar)}
}

// ResponseFrom builds a Response from a plain map. Keys are inserted in the
// order given by keys; map entries not listed follow in sorted order.
func ResponseFrom(m map[string]string, keys ...string) Response {
	r := NewResponse()
	for _, k := range keys {
		if v, ok := m[k]; ok {
			r.Set(k, String(v))
		}
	}
	rest := make([]string, 0, len(m))
	for k := range m {
		if _, ok := r.values[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		r.Set(k, String(m[k]))
	}
	return r
}

// Set adds or replaces a key.
func (r *Response) Set(key string, v Scalar) {
	if r.values == nil {
		r.values = make(map[string]Scalar)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Lookup returns the value stored under key.
func (r Response) Lookup(key string) (Scalar, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (r Response) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys.
func (r Response) Len() int { return len(r.keys) }

// MarshalJSON writes the keys in insertion order.
func (r Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts only a JSON object.
func (r *Response) UnmarshalJSON(data []byte) error {
	parsed, err := ParseResponse(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseResponse decodes a JSON object into a Response, preserving key order.
// Anything other than an object yields ErrMalformedResponse.
func ParseResponse(data []byte) (Response, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Response{}, ErrMalformedResponse
	}

	r := NewResponse()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		key, ok := tok.(string)
		if !ok {
			return Response{}, ErrMalformedResponse
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Response{}, fmt.Errorf("%w: key %q: %v", ErrMalformedResponse, key, err)
		}
		var v Scalar
		if err := v.UnmarshalJSON(raw); err != nil {
			return Response{}, fmt.Errorf("%w: key %q: %v", ErrMalformedResponse, key, err)
		}
		r.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return r, nil
}
