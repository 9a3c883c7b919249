package security

import (
	"net/url"
	"strings"
)

// sensitiveFields contains query and field names whose values are masked.
var sensitiveFields = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"key":          true,
	"secret":       true,
	"password":     true,
	"token":        true,
	"access_token": true,
	"auth_token":   true,
	"sig":          true,
	"signature":    true,
}

// IsSensitiveField reports whether values under name should be masked.
func IsSensitiveField(name string) bool {
	return sensitiveFields[strings.ToLower(name)]
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskURL hides the password and sensitive query values of an endpoint URL.
// Unparseable input is masked whole.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return MaskCredential(raw)
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name, values := range q {
			if !IsSensitiveField(name) {
				continue
			}
			for i, v := range values {
				values[i] = MaskCredential(v)
			}
			q[name] = values
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}
