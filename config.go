package blux

import (
	"net/http"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Default values used by MakeClient when the corresponding Config field is
// not set.
const (
	// DefaultBatchWindow is how long recorded events accumulate before they
	// are sent as one batch.
	DefaultBatchWindow = 100 * time.Millisecond

	// DefaultSDKType is reported to the backend when Config.SDKType is empty.
	DefaultSDKType = "native"
)

// Stage selects which Blux API deployment the SDK talks to. The zero value
// means production.
type Stage string

// Deployment stages.
const (
	StageProd  Stage = "prod"
	StageStg   Stage = "stg"
	StageDev   Stage = "dev"
	StageLocal Stage = "local"
)

// PreferenceStore is the key-value storage the SDK uses for identity state
// (device id, blux id, user id). The default implementation is a YAML file;
// see Config.PreferenceFilePath. A custom implementation must be safe for
// concurrent use.
type PreferenceStore interface {
	// Get returns the stored value for a key, if any.
	Get(key string) (string, bool)
	// Set stores a value.
	Set(key, value string) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) error
	// Close releases any resources held by the store.
	Close() error
}

// Config exposes configuration options for the Blux client.
//
// All of these settings are optional, so an empty Config struct is always
// valid. See the description of each field for the default behavior if it is
// not set.
type Config struct {
	// Loggers receives all SDK log output. If not set, output goes to
	// standard error with Info as the minimum level.
	Loggers ldlog.Loggers

	// Stage selects the API deployment. The default is production.
	Stage Stage

	// BaseURI overrides the stage-derived service base URI. Intended for
	// testing or proxied deployments; leave empty otherwise.
	BaseURI string

	// HTTPClient, if set, is used for all requests to the backend. Use this
	// to configure proxies, custom TLS settings, or timeouts. If nil, a
	// default client with a 60 second timeout is used.
	HTTPClient *http.Client

	// BatchWindow is how long recorded events accumulate before being sent
	// as one batch. If zero or negative, DefaultBatchWindow is used.
	BatchWindow time.Duration

	// PreferenceFilePath is where the SDK persists identity state between
	// runs. If empty and PreferenceStore is nil, state is kept in memory
	// only and the device re-registers on every startup.
	PreferenceFilePath string

	// PreferenceStore, if set, replaces the file-backed store entirely and
	// PreferenceFilePath is ignored.
	PreferenceStore PreferenceStore

	// InappSurface renders server-selected in-app messages. If nil, in-app
	// messages are discarded.
	InappSurface InappSurface

	// URLOpener receives non-web URLs (custom schemes) opened from inside an
	// in-app message. If nil, such links only dismiss the message.
	URLOpener URLOpener

	// SDKType distinguishes SDK flavors built on top of this one (for
	// example a game-engine wrapper). If empty, DefaultSDKType is reported.
	SDKType string
}
