package aql

import (
	"strconv"
	"strings"
)

// MaxIdentifierLength bounds legalized identifiers.
const MaxIdentifierLength = 128

// FallbackName replaces a preferred name that legalizes to nothing.
const FallbackName = "p"

// Legalize strips every character outside [A-Za-z0-9_], truncates to
// MaxIdentifierLength and falls back to FallbackName when nothing is left.
func Legalize(preferred string) string {
	var b strings.Builder
	for i := 0; i < len(preferred) && b.Len() < MaxIdentifierLength; i++ {
		c := preferred[i]
		if c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return FallbackName
	}
	return b.String()
}

// nameSet allocates names with the numeric-suffix collision policy:
// name, name0, name1, ...
type nameSet struct {
	taken    map[string]bool
	reserved func(string) bool
}

func newNameSet(reserved func(string) bool) *nameSet {
	return &nameSet{taken: map[string]bool{}, reserved: reserved}
}

func (s *nameSet) free(name string) bool {
	if s.taken[name] {
		return false
	}
	return s.reserved == nil || !s.reserved(name)
}

func (s *nameSet) claim(base string) string {
	name := base
	for i := 0; !s.free(name); i++ {
		suffix := strconv.Itoa(i)
		stem := base
		if len(stem)+len(suffix) > MaxIdentifierLength {
			stem = stem[:MaxIdentifierLength-len(suffix)]
		}
		name = stem + suffix
	}
	s.taken[name] = true
	return name
}

// BindVars is the bind-variable pool of one compilation.
//
// It is never shared across compilations.
type BindVars struct {
	names  *nameSet
	values map[string]any
	order  []string
}

// NewBindVars returns an empty pool.
func NewBindVars() *BindVars {
	return &BindVars{names: newNameSet(nil), values: map[string]any{}}
}

// AddNewVar records value under a free name derived from preferredName
// and returns that name. An empty preferredName means FallbackName.
func (b *BindVars) AddNewVar(value any, preferredName string) string {
	name := b.names.claim(Legalize(preferredName))
	b.values[name] = value
	b.order = append(b.order, name)
	return name
}

// Names returns bind-variable names in allocation order.
func (b *BindVars) Names() []string {
	return append([]string(nil), b.order...)
}

// Map returns a copy of the name → value mapping.
func (b *BindVars) Map() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Len returns the number of bind variables.
func (b *BindVars) Len() int {
	return len(b.order)
}

// Variables allocates query variables for one compilation.
//
// Names are legalized, must not start with a digit and must not collide
// with an AQL keyword (compared case-insensitively); colliding names get
// numeric suffixes.
type Variables struct {
	names *nameSet
	all   []*Variable
}

// NewVariables returns an empty allocator.
func NewVariables() *Variables {
	return &Variables{names: newNameSet(IsKeyword)}
}

// New mints a fresh variable from a preferred name.
func (v *Variables) New(preferred string) *Variable {
	base := Legalize(preferred)
	if base[0] >= '0' && base[0] <= '9' {
		base = Legalize(FallbackName + base)
	}
	qv := &Variable{Name: v.names.claim(base)}
	v.all = append(v.all, qv)
	return qv
}

// Count returns the number of variables allocated so far.
func (v *Variables) Count() int {
	return len(v.all)
}

var keywords = map[string]bool{}

func init() {
	for _, k := range []string{
		"FOR", "RETURN", "FILTER", "SEARCH", "SORT", "LIMIT", "LET", "COLLECT",
		"WINDOW", "INSERT", "UPDATE", "REPLACE", "REMOVE", "UPSERT", "WITH",
		"AGGREGATE", "ALL", "ALL_SHORTEST_PATHS", "AND", "ANY", "ASC", "DESC",
		"DISTINCT", "FALSE", "GRAPH", "IN", "INBOUND", "INTO", "K_PATHS",
		"K_SHORTEST_PATHS", "LIKE", "NONE", "NOT", "NULL", "OR", "OUTBOUND",
		"SHORTEST_PATH", "TRUE", "KEEP", "COUNT", "OPTIONS", "PRUNE",
		"AT", "LEAST", "CURRENT", "NEW", "OLD",
	} {
		keywords[k] = true
	}
}

// IsKeyword reports whether name is an AQL keyword, ignoring case.
func IsKeyword(name string) bool {
	return keywords[strings.ToUpper(name)]
}

// IsIdentifier reports whether name can appear unquoted as an AQL
// variable, collection or attribute name.
func IsIdentifier(name string) bool {
	if name == "" || IsKeyword(name) {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
