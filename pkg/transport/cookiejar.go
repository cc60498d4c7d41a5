package transport

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CookieJar is http.CookieJar plus a Flush to persist to disk. §5's
// resource table says the cookie jar is "written only on main thread
// during save/flush" — callers are expected to call Flush from one
// place, not from every worker.
type CookieJar interface {
	http.CookieJar
	Flush() error
}

// netscapeJar implements CookieJar backed by the classic Netscape cookie
// file format (§6 on-disk layout: cookies.txt), the format libcurl's
// CURLOPT_COOKIEJAR writes.
type netscapeJar struct {
	mu      sync.Mutex
	path    string
	cookies map[string][]*http.Cookie // keyed by domain
}

// NewNetscapeJar loads path if present (a missing file starts empty) and
// returns a jar that can later Flush back to it.
func NewNetscapeJar(path string) (CookieJar, error) {
	j := &netscapeJar{path: path, cookies: make(map[string][]*http.Cookie)}
	if path == "" {
		return j, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, fmt.Errorf("opening cookie jar %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		domain := fields[0]
		httpOnly := fields[1] == "TRUE"
		path2 := fields[2]
		secure := fields[3] == "TRUE"
		expiresUnix, _ := strconv.ParseInt(fields[4], 10, 64)
		name := fields[5]
		value := fields[6]

		c := &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     path2,
			Domain:   strings.TrimPrefix(domain, "."),
			Secure:   secure,
			HttpOnly: httpOnly,
		}
		if expiresUnix > 0 {
			c.Expires = time.Unix(expiresUnix, 0)
		}
		key := cookieDomainKey(c.Domain)
		j.cookies[key] = append(j.cookies[key], c)
	}
	return j, nil
}

func cookieDomainKey(domain string) string {
	return strings.ToLower(strings.TrimPrefix(domain, "."))
}

// SetCookies implements http.CookieJar.
func (j *netscapeJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := cookieDomainKey(u.Hostname())
	existing := j.cookies[key]
	for _, c := range cookies {
		replaced := false
		for i, e := range existing {
			if e.Name == c.Name && e.Path == c.Path {
				existing[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
	}
	j.cookies[key] = existing
}

// Cookies implements http.CookieJar.
func (j *netscapeJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := cookieDomainKey(u.Hostname())
	now := time.Now()
	var out []*http.Cookie
	for _, c := range j.cookies[key] {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Flush writes the jar back to its path in Netscape format.
func (j *netscapeJar) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.path == "" {
		return nil
	}

	f, err := os.Create(j.path)
	if err != nil {
		return fmt.Errorf("creating cookie jar %s: %w", j.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# Netscape HTTP Cookie File")
	for domain, cookies := range j.cookies {
		for _, c := range cookies {
			httpOnly := "FALSE"
			if c.HttpOnly {
				httpOnly = "TRUE"
			}
			secure := "FALSE"
			if c.Secure {
				secure = "TRUE"
			}
			var expires int64
			if !c.Expires.IsZero() {
				expires = c.Expires.Unix()
			}
			path := c.Path
			if path == "" {
				path = "/"
			}
			fmt.Fprintf(w, ".%s\t%s\t%s\t%s\t%d\t%s\t%s\n", domain, httpOnly, path, secure, expires, c.Name, c.Value)
		}
	}
	return w.Flush()
}
