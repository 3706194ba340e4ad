package aql

import (
	"fmt"
	"sort"
	"strings"
)

// FunctionRegistry maps callable identities to AQL function names.
//
// A registry is immutable once built. The default registry is built at
// package initialization from the scalar function library; configured
// registries are derived from it with Extend before any compilation
// reads them, so no synchronization is needed.
type FunctionRegistry struct {
	byCallable map[string]string
}

// Function library groups, keyed by callable identity.
var (
	stringFunctions = map[string]string{
		"Aql.Concat":          "CONCAT",
		"Aql.ConcatSeparator": "CONCAT_SEPARATOR",
		"Aql.CharLength":      "CHAR_LENGTH",
		"Aql.Lower":           "LOWER",
		"Aql.Upper":           "UPPER",
		"Aql.Substitute":      "SUBSTITUTE",
		"Aql.Substring":       "SUBSTRING",
		"Aql.Left":            "LEFT",
		"Aql.Right":           "RIGHT",
		"Aql.Trim":            "TRIM",
		"Aql.LTrim":           "LTRIM",
		"Aql.RTrim":           "RTRIM",
		"Aql.Split":           "SPLIT",
		"Aql.Reverse":         "REVERSE",
		"Aql.Contains":        "CONTAINS",
		"Aql.FindFirst":       "FIND_FIRST",
		"Aql.FindLast":        "FIND_LAST",
		"Aql.Like":            "LIKE",
	}

	dateFunctions = map[string]string{
		"Aql.DateNow":       "DATE_NOW",
		"Aql.DateIso8601":   "DATE_ISO8601",
		"Aql.DateTimestamp": "DATE_TIMESTAMP",
		"Aql.DateAdd":       "DATE_ADD",
	}

	geoFunctions = map[string]string{
		"Aql.Distance":    "DISTANCE",
		"Aql.GeoContains": "GEO_CONTAINS",
		"Aql.GeoDistance": "GEO_DISTANCE",
	}

	typeFunctions = map[string]string{
		"Aql.ToBool":       "TO_BOOL",
		"Aql.ToNumber":     "TO_NUMBER",
		"Aql.ToString":     "TO_STRING",
		"Aql.ToArray":      "TO_ARRAY",
		"Aql.ToList":       "TO_LIST",
		"Aql.IsNull":       "IS_NULL",
		"Aql.IsBool":       "IS_BOOL",
		"Aql.IsNumber":     "IS_NUMBER",
		"Aql.IsString":     "IS_STRING",
		"Aql.IsArray":      "IS_ARRAY",
		"Aql.IsList":       "IS_LIST",
		"Aql.IsObject":     "IS_OBJECT",
		"Aql.IsDocument":   "IS_DOCUMENT",
		"Aql.IsDateString": "IS_DATESTRING",
		"Aql.IsKey":        "IS_KEY",
		"Aql.IsIpv4":       "IS_IPV4",
		"Aql.Typename":     "TYPENAME",
	}

	documentFunctions = map[string]string{
		"Aql.Document": "DOCUMENT",
	}
)

// DefaultFunctions is the scalar function library.
var DefaultFunctions *FunctionRegistry

func init() {
	byCallable := map[string]string{}
	for _, group := range []map[string]string{
		stringFunctions, dateFunctions, geoFunctions, typeFunctions, documentFunctions,
	} {
		for callable, name := range group {
			byCallable[callable] = name
		}
	}
	DefaultFunctions = &FunctionRegistry{byCallable: byCallable}
}

// Lookup returns the AQL function name registered for callable.
func (r *FunctionRegistry) Lookup(callable string) (string, bool) {
	if r == nil {
		return "", false
	}
	name, ok := r.byCallable[callable]
	return name, ok
}

// Extend returns a new registry with extra registrations added. Function
// names must be upper-case AQL identifiers, optionally namespaced with
// "::" for user-defined functions.
func (r *FunctionRegistry) Extend(extra map[string]string) (*FunctionRegistry, error) {
	byCallable := make(map[string]string, len(r.byCallable)+len(extra))
	for k, v := range r.byCallable {
		byCallable[k] = v
	}
	for callable, name := range extra {
		if callable == "" {
			return nil, fmt.Errorf("empty callable for function %q", name)
		}
		if !validFunctionName(name) {
			return nil, fmt.Errorf("invalid AQL function name %q for %s", name, callable)
		}
		byCallable[callable] = name
	}
	return &FunctionRegistry{byCallable: byCallable}, nil
}

// Callables returns the registered callable identities, sorted.
func (r *FunctionRegistry) Callables() []string {
	out := make([]string, 0, len(r.byCallable))
	for k := range r.byCallable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func validFunctionName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, "::") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			c := part[i]
			switch {
			case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
			case c >= '0' && c <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}
