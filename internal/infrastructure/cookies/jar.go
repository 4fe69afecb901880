// Package cookies persists webmail session cookies between runs so the
// mailbox poller can resume an authenticated session without an
// interactive login.
package cookies

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

var (
	ErrNoCookies      = errors.New("cookies: no saved session")
	ErrSessionExpired = errors.New("cookies: saved session expired")
)

// Jar stores one webmail session on disk as JSON with a save timestamp.
// Sessions older than TTL are treated as expired on load.
type Jar struct {
	Path string
	TTL  time.Duration
}

type snapshot struct {
	SavedAt time.Time              `json:"saved_at"`
	Cookies []*proto.NetworkCookie `json:"cookies"`
}

func NewJar(path string, ttl time.Duration) *Jar {
	return &Jar{Path: path, TTL: ttl}
}

// Save overwrites the jar with the given cookies and the current time.
func (j *Jar) Save(cks []*proto.NetworkCookie) error {
	data, err := json.MarshalIndent(snapshot{
		SavedAt: time.Now().UTC(),
		Cookies: cks,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.WriteFile(j.Path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", j.Path, err)
	}
	return nil
}

// Load returns the saved cookies as params ready for installation on a
// browser. ErrNoCookies means nothing was saved (or the file is not a
// jar); ErrSessionExpired means the save is older than TTL.
func (j *Jar) Load() ([]*proto.NetworkCookieParam, error) {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCookies
		}
		return nil, fmt.Errorf("read %s: %w", j.Path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ErrNoCookies
	}
	if len(snap.Cookies) == 0 {
		return nil, ErrNoCookies
	}
	if j.TTL > 0 && time.Since(snap.SavedAt) > j.TTL {
		return nil, ErrSessionExpired
	}

	params := make([]*proto.NetworkCookieParam, 0, len(snap.Cookies))
	for _, c := range snap.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
			Expires:  c.Expires,
		})
	}
	return params, nil
}

// EmailPrefix derives the mailbox account name from the session's auth
// token: the `aut` cookie is a JWT whose payload names the account in
// its `name` claim (an email address), with `nickname` as fallback.
func (j *Jar) EmailPrefix() (string, error) {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCookies
		}
		return "", fmt.Errorf("read %s: %w", j.Path, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return "", ErrNoCookies
	}
	for _, c := range snap.Cookies {
		if c.Name != "aut" {
			continue
		}
		return prefixFromToken(c.Value)
	}
	return "", ErrNoCookies
}

func prefixFromToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", errors.New("cookies: auth token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode auth token payload: %w", err)
	}
	var claims struct {
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("parse auth token payload: %w", err)
	}
	if claims.Name != "" {
		local, _, found := strings.Cut(claims.Name, "@")
		if found {
			return local, nil
		}
		return claims.Name, nil
	}
	if claims.Nickname != "" {
		return claims.Nickname, nil
	}
	return "", errors.New("cookies: auth token has no account claim")
}
