package resource

import (
	"github.com/spf13/cast"
)

// AttributeMap is a convenience wrapper for pulling out typed information from a map.
type AttributeMap map[string]interface{}

// Has returns whether or not the given name is in the map.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// String attempts to return a string present in the map with the given name; returns
// an empty string otherwise.
func (am AttributeMap) String(name string) string {
	return cast.ToString(am[name])
}

// Int attempts to return an integer present in the map with the given name; returns
// the given default otherwise.
func (am AttributeMap) Int(name string, def int) int {
	if !am.Has(name) {
		return def
	}
	v, err := cast.ToIntE(am[name])
	if err != nil {
		return def
	}
	return v
}

// Float64 attempts to return a float64 present in the map with the given name; returns
// the given default otherwise.
func (am AttributeMap) Float64(name string, def float64) float64 {
	if !am.Has(name) {
		return def
	}
	v, err := cast.ToFloat64E(am[name])
	if err != nil {
		return def
	}
	return v
}

// Bool attempts to return a boolean present in the map with the given name; returns
// the given default otherwise.
func (am AttributeMap) Bool(name string, def bool) bool {
	if !am.Has(name) {
		return def
	}
	v, err := cast.ToBoolE(am[name])
	if err != nil {
		return def
	}
	return v
}

// IntSlice attempts to return a slice of ints present in the map with the given name;
// returns nil otherwise.
func (am AttributeMap) IntSlice(name string) []int {
	v, err := cast.ToIntSliceE(am[name])
	if err != nil {
		return nil
	}
	return v
}
