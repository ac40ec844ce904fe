package tripflow

import _ "embed"

// Version is the release version, taken from the VERSION file.
//
//go:embed VERSION
var Version string
