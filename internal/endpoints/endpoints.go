// Package endpoints defines the service base URIs for each deployment stage
// and the logic for choosing between a default and a custom URI.
package endpoints

import (
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Stage identifies which deployment of the Blux API the SDK talks to.
type Stage string

// Deployment stages.
const (
	StageLocal Stage = "local"
	StageDev   Stage = "dev"
	StageStg   Stage = "stg"
	StageProd  Stage = "prod"
)

// Stage base URIs.
const (
	LocalBaseURI      = "http://localhost:9000/local"
	DefaultBaseURIFmt = "https://api.blux.ai/"
)

// Request paths used by the SDK.
const (
	CollectEventsPath  = "/collect-events"
	InitializeUserPath = "/blux-users/initialize"
)

// BaseURI returns the default base URI for a stage. Unknown stages fall back
// to production.
func BaseURI(stage Stage) string {
	switch stage {
	case StageLocal:
		return LocalBaseURI
	case StageDev, StageStg, StageProd:
		return DefaultBaseURIFmt + string(stage)
	default:
		return DefaultBaseURIFmt + string(StageProd)
	}
}

// SelectBaseURI returns the override URI if one was configured, otherwise the
// stage default. A trailing slash on an override is dropped so that path
// concatenation stays uniform; a malformed-looking override is still used,
// but logged.
func SelectBaseURI(override string, stage Stage, loggers ldlog.Loggers) string {
	if override == "" {
		return BaseURI(stage)
	}
	uri := strings.TrimSuffix(override, "/")
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		loggers.Warnf("Configured base URI %q does not look like an HTTP URI; using it anyway", override)
	}
	return uri
}
