package utils

import (
	"net/url"
	"regexp"
	"strings"
)

const masked = "***MASKED***"

// keyword=value DSNs (pgx) and "user/password@host" DSNs (godror easy connect)
var (
	kvPasswordRe    = regexp.MustCompile(`(?i)(password\s*=\s*)(\S+)`)
	slashPasswordRe = regexp.MustCompile(`^([^/@\s]+)/([^@\s]+)@(.+)$`)
)

// MaskDatabaseURL hides the password in a DATABASE_URL before it is logged.
// URL forms (postgres://, oracle://, file:) go through net/url; other DSNs
// are masked by pattern. Unrecognised formats are returned unchanged.
func MaskDatabaseURL(dsn string) string {
	if dsn == "" {
		return "--- EMPTY ---"
	}

	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "*** UNPARSEABLE DATABASE URL ***"
		}
		if u.User != nil {
			if _, hasPassword := u.User.Password(); hasPassword {
				u.User = url.UserPassword(u.User.Username(), masked)
			}
		}
		q := u.Query()
		if q.Has("password") {
			q.Set("password", masked)
			u.RawQuery = q.Encode()
		}
		// Keep the marker readable instead of percent-encoded
		return strings.ReplaceAll(u.String(), url.QueryEscape(masked), masked)
	}

	if m := slashPasswordRe.FindStringSubmatch(dsn); m != nil {
		return m[1] + "/" + masked + "@" + m[3]
	}
	return kvPasswordRe.ReplaceAllString(dsn, "${1}"+masked)
}
