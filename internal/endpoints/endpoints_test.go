package endpoints

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
)

func TestBaseURIPerStage(t *testing.T) {
	assert.Equal(t, "http://localhost:9000/local", BaseURI(StageLocal))
	assert.Equal(t, "https://api.blux.ai/dev", BaseURI(StageDev))
	assert.Equal(t, "https://api.blux.ai/stg", BaseURI(StageStg))
	assert.Equal(t, "https://api.blux.ai/prod", BaseURI(StageProd))
}

func TestUnknownStageFallsBackToProd(t *testing.T) {
	assert.Equal(t, BaseURI(StageProd), BaseURI(Stage("")))
	assert.Equal(t, BaseURI(StageProd), BaseURI(Stage("qa")))
}

func TestSelectBaseURIPrefersOverride(t *testing.T) {
	loggers := ldlog.NewDisabledLoggers()
	assert.Equal(t, "https://proxy.example.com", SelectBaseURI("https://proxy.example.com", StageProd, loggers))
	assert.Equal(t, BaseURI(StageDev), SelectBaseURI("", StageDev, loggers))
}

func TestSelectBaseURITrimsTrailingSlash(t *testing.T) {
	assert.Equal(t, "https://proxy.example.com",
		SelectBaseURI("https://proxy.example.com/", StageProd, ldlog.NewDisabledLoggers()))
}

func TestSelectBaseURIWarnsOnNonHTTPOverride(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	uri := SelectBaseURI("ftp://weird.example.com", StageProd, mockLog.Loggers)
	assert.Equal(t, "ftp://weird.example.com", uri)
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "does not look like an HTTP URI")
}
