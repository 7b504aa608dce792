package httpclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"
)

// Session selects how cookies persist across requests of one client.
type Session string

const (
	// SessionEphemeral keeps no cookies between requests.
	SessionEphemeral Session = "ephemeral"
	// SessionPersistent stores cookies in a jar scoped by public suffix, so
	// a login cookie set by one call is sent on the next.
	SessionPersistent Session = "persistent"
)

// ParseSession parses "ephemeral" or "persistent"; empty selects ephemeral.
func ParseSession(s string) (Session, error) {
	switch Session(s) {
	case SessionEphemeral, "":
		return SessionEphemeral, nil
	case SessionPersistent:
		return SessionPersistent, nil
	}
	return "", fmt.Errorf("unknown session profile %q", s)
}

// buildHTTPClient copies base (or builds a client over a clone of
// http.DefaultTransport) and applies the session profile. The zero Session
// leaves the jar of a provided client untouched.
func buildHTTPClient(base *http.Client, tlsConfig *tls.Config, session Session) (*http.Client, error) {
	var hc http.Client
	if base != nil {
		hc = *base
	} else {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if tlsConfig != nil {
			transport.TLSClientConfig = tlsConfig.Clone()
		}
		hc.Transport = transport
	}

	switch session {
	case "":
	case SessionEphemeral:
		hc.Jar = nil
	case SessionPersistent:
		if hc.Jar == nil {
			jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
			if err != nil {
				return nil, fmt.Errorf("httpclient: create cookie jar: %w", err)
			}
			hc.Jar = jar
		}
	default:
		return nil, fmt.Errorf("httpclient: unknown session profile %q", session)
	}
	return &hc, nil
}
