package khata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boikhata/khata/storage"
)

// CookiesKey is the storage key holding the persisted cookie jar.
const CookiesKey = "cookies"

type persistedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func (p persistedCookie) id() string {
	return p.Domain + "|" + p.Path + "|" + p.Name
}

func (p persistedCookie) expired(now time.Time) bool {
	return !p.Expires.IsZero() && !p.Expires.After(now)
}

// persistentJar is an http.CookieJar that mirrors every cookie it accepts into storage, so
// the refresh cookie survives a restart.
type persistentJar struct {
	backend storage.Backend
	key     string
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	// writeMu orders encode-and-write sequences so the last write holds the latest state.
	writeMu sync.Mutex
	mu      sync.Mutex
	jar     *cookiejar.Jar
	saved   map[string]persistedCookie
}

func newPersistentJar(backend storage.Backend, key string, timeout time.Duration, log zerolog.Logger) (*persistentJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &persistentJar{
		backend: backend,
		key:     key,
		timeout: timeout,
		log:     log,
		now:     time.Now,
		jar:     jar,
		saved:   make(map[string]persistedCookie),
	}, nil
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	jar := j.jar
	j.mu.Unlock()
	return jar.Cookies(u)
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	j.mu.Lock()
	j.jar.SetCookies(u, cookies)

	now := j.now()
	changed := false
	for _, ck := range cookies {
		p := persistedCookie{
			URL:      u.Scheme + "://" + u.Host + "/",
			Name:     ck.Name,
			Value:    ck.Value,
			Path:     ck.Path,
			Domain:   ck.Domain,
			Expires:  ck.Expires,
			Secure:   ck.Secure,
			HttpOnly: ck.HttpOnly,
		}
		if p.Path == "" {
			p.Path = defaultCookiePath(u.Path)
		}
		switch {
		case ck.MaxAge < 0:
			p.Expires = now
		case ck.MaxAge > 0:
			p.Expires = now.Add(time.Duration(ck.MaxAge) * time.Second)
		}

		if p.expired(now) {
			if _, ok := j.saved[p.id()]; ok {
				delete(j.saved, p.id())
				changed = true
			}
			continue
		}
		j.saved[p.id()] = p
		changed = true
	}

	var data []byte
	var err error
	if changed {
		data, err = j.encodeLocked(now)
	}
	j.mu.Unlock()

	if !changed {
		return
	}
	if err == nil {
		err = j.write(data)
	}
	if err != nil {
		j.log.Warn().Err(err).Msg("persist cookies")
	}
}

// restore loads persisted cookies into the in-memory jar. A missing key is not an error; an
// unreadable value is dropped.
func (j *persistentJar) restore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	data, err := j.backend.Load(ctx, j.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}

	var list []persistedCookie
	if err := json.Unmarshal(data, &list); err != nil {
		j.log.Warn().Err(err).Msg("discarding unreadable cookies")
		return j.backend.Delete(ctx, j.key)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, p := range list {
		if p.expired(now) {
			continue
		}
		u, err := url.Parse(p.URL)
		if err != nil {
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{{
			Name:     p.Name,
			Value:    p.Value,
			Path:     p.Path,
			Domain:   p.Domain,
			Expires:  p.Expires,
			Secure:   p.Secure,
			HttpOnly: p.HttpOnly,
		}})
		j.saved[p.id()] = p
	}
	return nil
}

// clear drops every cookie from memory and storage.
func (j *persistentJar) clear(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	j.mu.Lock()
	j.jar = jar
	j.saved = make(map[string]persistedCookie)
	j.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	if err := j.backend.Delete(ctx, j.key); err != nil {
		return fmt.Errorf("delete cookies: %w", err)
	}
	return nil
}

func (j *persistentJar) encodeLocked(now time.Time) ([]byte, error) {
	list := make([]persistedCookie, 0, len(j.saved))
	for _, p := range j.saved {
		if !p.expired(now) {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(a, b int) bool { return list[a].id() < list[b].id() })
	return json.Marshal(list)
}

func (j *persistentJar) write(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if string(data) == "[]" {
		return j.backend.Delete(ctx, j.key)
	}
	return j.backend.Save(ctx, j.key, data)
}

// defaultCookiePath follows RFC 6265 section 5.1.4.
func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := len(p) - 1
	for i > 0 && p[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return p[:i]
}
