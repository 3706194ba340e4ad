package ir

// Version constants recorded with every stored compilation.
const (
	// FormatVersion is the canonical encoding version. Bump it when the
	// canonical form of a compilation changes.
	FormatVersion = "1"

	// CompilerVersion is the aqlc compiler version.
	CompilerVersion = "0.1.0"
)
