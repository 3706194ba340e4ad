package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the algorithm to change without collisions.
const (
	DomainQuery  = "aqlc/query/v1"
	DomainSource = "aqlc/source/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryHash identifies a compiled query by its text, bind variables and
// output behavior. Two compilations with the same hash are
// interchangeable at execution time.
func QueryHash(text string, bindVars map[string]any, output string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"text":      text,
		"bind_vars": bindVars,
		"output":    output,
	})
	if err != nil {
		return "", fmt.Errorf("QueryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// SourceHash identifies a compile input: the formatted pipeline, the root
// collection and the parameter values it was compiled with.
func SourceHash(pipeline, rootCollection string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"pipeline":   pipeline,
		"collection": rootCollection,
		"params":     params,
	})
	if err != nil {
		return "", fmt.Errorf("SourceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSource, canonical), nil
}

// MustQueryHash is like QueryHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustQueryHash(text string, bindVars map[string]any, output string) string {
	h, err := QueryHash(text, bindVars, output)
	if err != nil {
		panic(err)
	}
	return h
}
