package enroll

import "time"

// Default timing policy. The refresh margin matches the provider's token
// behavior: a token obtained within a minute of the deadline is fresh
// enough to survive the attempt.
const (
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultRefreshMargin = 60 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond

	defaultSubjectField = "AsvzId"
	defaultSecretField  = "Password"
	defaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
)

// Config holds the provider endpoints and timing policy of the engine.
// It is immutable once the engine is constructed.
type Config struct {
	// LoginURL is the identity provider's interactive login endpoint,
	// including the authorize-callback return URL that makes the provider
	// embed an access token in the final redirect fragment.
	LoginURL string

	// APIBaseURL is the resource provider's API root. Lessons live at
	// <APIBaseURL>/Lessons/<id>, enrollment at .../Enrollment.
	APIBaseURL string

	// SubjectField and SecretField are the login form field names.
	SubjectField string
	SecretField  string

	// UserAgent is sent on every outbound request.
	UserAgent string

	// HTTPTimeout bounds each individual outbound call.
	HTTPTimeout time.Duration

	// RefreshMargin is how long before the deadline the access token is
	// renewed.
	RefreshMargin time.Duration

	// PollInterval is the slice length of the fine-grained wait loop.
	PollInterval time.Duration
}

// withDefaults fills in zero-valued fields.
func (c Config) withDefaults() Config {
	if c.SubjectField == "" {
		c.SubjectField = defaultSubjectField
	}
	if c.SecretField == "" {
		c.SecretField = defaultSecretField
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = DefaultRefreshMargin
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Credentials identify the member enrolling. They live for one job
// execution and are never persisted by the engine.
type Credentials struct {
	MemberID string
	Secret   string
}

// Token is a bearer token issued by the identity provider.
type Token string
