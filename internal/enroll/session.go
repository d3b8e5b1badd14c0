package enroll

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const verificationTokenField = "__RequestVerificationToken"

// Session performs the interactive login handshake against the identity
// provider and yields a bearer token. One Session is created per job
// execution; nothing persists across executions.
type Session struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client
}

// NewSession creates a session with a fresh cookie jar. The jar is needed
// because the provider correlates the login form GET and the credential
// POST through cookies.
func NewSession(cfg Config, logger *slog.Logger) *Session {
	jar, _ := cookiejar.New(nil)

	return &Session{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Jar:     jar,
		},
	}
}

// Authenticate fetches the login form, submits the credentials, and
// extracts the access token from the fragment of the final redirect.
func (s *Session) Authenticate(ctx context.Context, creds Credentials) (Token, error) {
	s.logger.Info("Starting login handshake",
		slog.String("member_id", creds.MemberID),
	)

	verificationToken, err := s.fetchVerificationToken(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{
		s.cfg.SubjectField:     {creds.MemberID},
		s.cfg.SecretField:      {creds.Secret},
		verificationTokenField: {verificationToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Reason: "building login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &AuthError{Reason: "login request failed", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Reason: "login returned status " + resp.Status}
	}

	// The provider hands the token back in the URL fragment of the final
	// redirect, not in a query parameter or the body.
	fragment := resp.Request.URL.Fragment
	params, err := url.ParseQuery(fragment)
	if err != nil {
		return "", &AuthError{Reason: "unparsable redirect fragment", Err: err}
	}

	accessToken := params.Get("access_token")
	if accessToken == "" {
		return "", &AuthError{Reason: "no access token in login redirect; check credentials"}
	}

	s.logger.Info("Login handshake complete",
		slog.String("redirect_url", resp.Request.URL.Path),
	)

	return Token(accessToken), nil
}

// fetchVerificationToken GETs the login page and pulls the anti-forgery
// token out of the form.
func (s *Session) fetchVerificationToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.LoginURL, nil)
	if err != nil {
		return "", &AuthError{Reason: "building login page request", Err: err}
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &AuthError{Reason: "login page request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Reason: "login page returned status " + resp.Status}
	}

	token := findInputValue(resp.Body, verificationTokenField)
	if token == "" {
		return "", &AuthError{Reason: "verification token missing from login form"}
	}

	return token, nil
}

// findInputValue scans an HTML document for <input name=...> and returns
// its value attribute, or "" when no such input exists.
func findInputValue(r io.Reader, name string) string {
	tokenizer := html.NewTokenizer(r)

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return ""
		}

		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		tagName, hasAttr := tokenizer.TagName()
		if string(tagName) != "input" || !hasAttr {
			continue
		}

		var inputName, inputValue string
		for {
			key, val, more := tokenizer.TagAttr()
			switch string(key) {
			case "name":
				inputName = string(val)
			case "value":
				inputValue = string(val)
			}
			if !more {
				break
			}
		}

		if inputName == name {
			return inputValue
		}
	}
}
