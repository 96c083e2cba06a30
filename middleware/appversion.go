package middleware

import (
	"github.com/kbukum/shopkit/pipeline"
	"github.com/kbukum/shopkit/version"
)

// Headers the server reads to decide whether the client must update.
const (
	HeaderAppVersion = "X-App-Version"
	HeaderPlatform   = "X-Platform"
	HeaderUserAgent  = "User-Agent"
)

// AppVersion stamps every request with the client version and platform.
type AppVersion struct {
	pipeline.PassThrough
	version   string
	platform  string
	userAgent string
}

// NewAppVersion creates the app-version middleware for the build's version.
func NewAppVersion(app string) *AppVersion {
	return &AppVersion{
		version:   version.Version,
		platform:  version.Platform,
		userAgent: version.UserAgent(app),
	}
}

// Name returns "app_version".
func (m *AppVersion) Name() string { return "app_version" }

// ShouldProcessRequest matches every request.
func (m *AppVersion) ShouldProcessRequest(*pipeline.Request) bool { return true }

// ProcessRequest sets the version headers.
func (m *AppVersion) ProcessRequest(req *pipeline.Request) *pipeline.Request {
	req.Headers.Set(HeaderAppVersion, m.version)
	req.Headers.Set(HeaderPlatform, m.platform)
	req.Headers.Set(HeaderUserAgent, m.userAgent)
	return req
}
