package app

import (
	"net/url"
	"strings"
)

const preparedBinaryParam = "disable_prepared_binary_result"

// databaseDSN prepares the pq connection string. When the prepared-binary
// toggle is on, the flag is appended unless the DSN already sets it; pooled
// postgres endpoints reject prepared statements with binary results. Both
// URL and key=value DSN forms are accepted.
func databaseDSN(raw string, disablePreparedBinary bool) string {
	raw = strings.TrimSpace(raw)
	if !disablePreparedBinary {
		return raw
	}

	if parsed, err := url.Parse(raw); err == nil && parsed.Scheme != "" {
		query := parsed.Query()
		if query.Get(preparedBinaryParam) != "" {
			return raw
		}
		query.Set(preparedBinaryParam, "yes")
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	if strings.Contains(raw, preparedBinaryParam+"=") {
		return raw
	}
	return strings.TrimSpace(raw + " " + preparedBinaryParam + "=yes")
}

// databaseName extracts the database name for trace attributes. Returns ""
// when the DSN does not name one.
func databaseName(raw string) string {
	raw = strings.TrimSpace(raw)

	if parsed, err := url.Parse(raw); err == nil && parsed.Scheme != "" {
		return strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/"))
	}

	for _, field := range strings.Fields(raw) {
		if value, ok := strings.CutPrefix(field, "dbname="); ok {
			return strings.Trim(value, `"'`)
		}
	}
	return ""
}
