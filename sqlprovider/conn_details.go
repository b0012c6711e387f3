// (c) Copyright IBM Corp. 2024

package sqlprovider

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// ConnDetails describes the data source a connection string points to. The
// password is never retained.
type ConnDetails struct {
	RawString string
	Host      string
	Port      string
	Schema    string
	User      string
}

// DataSource returns host:port, or just the host if there is no port
func (d ConnDetails) DataSource() string {
	if d.Port == "" {
		return d.Host
	}

	return net.JoinHostPort(d.Host, d.Port)
}

// ParseConnDetails extracts the data source details from a URI, a
// PostgreSQL-style key=value or a MySQL/ODBC-style Key=Value; string. If the
// format is not recognized only RawString is set.
func ParseConnDetails(connStr string) ConnDetails {
	strategies := [...]func(string) (ConnDetails, bool){
		parseConnDetailsURI,
		parsePostgresConnDetailsKV,
		parseMySQLConnDetailsKV,
	}
	for _, parseFn := range strategies {
		if details, ok := parseFn(connStr); ok {
			return details
		}
	}

	return ConnDetails{RawString: connStr}
}

// parseConnDetailsURI attempts to parse a connection string as an URI, assuming that it has
// following format: [scheme://][user[:[password]]@]host[:port][/schema][?attribute1=value1&attribute2=value2...]
func parseConnDetailsURI(connStr string) (ConnDetails, bool) {
	u, err := url.Parse(connStr)
	if err != nil {
		return ConnDetails{}, false
	}

	if u.Scheme == "" {
		return ConnDetails{}, false
	}

	path := ""
	if len(u.Path) > 1 {
		path = u.Path[1:]
	}

	details := ConnDetails{
		RawString: connStr,
		Host:      u.Hostname(),
		Port:      u.Port(),
		Schema:    path,
	}

	if u.User != nil {
		details.User = u.User.Username()

		// strip the password from the copy
		stripped := *u
		stripped.User = url.User(details.User)
		details.RawString = stripped.String()
	}

	return details, true
}

var postgresKVPasswordRegex = regexp.MustCompile(`(^|\s)password=[^\s]+(\s|$)`)

// parsePostgresConnDetailsKV parses a space-separated PostgreSQL-style connection string
func parsePostgresConnDetailsKV(connStr string) (ConnDetails, bool) {
	var details ConnDetails

	for _, field := range strings.Split(connStr, " ") {
		fieldNorm := strings.ToLower(field)

		var (
			prefix   string
			fieldPtr *string
		)
		switch {
		case strings.HasPrefix(fieldNorm, "host="):
			if details.Host != "" {
				// hostaddr= takes precedence
				continue
			}

			prefix, fieldPtr = "host=", &details.Host
		case strings.HasPrefix(fieldNorm, "hostaddr="):
			prefix, fieldPtr = "hostaddr=", &details.Host
		case strings.HasPrefix(fieldNorm, "port="):
			prefix, fieldPtr = "port=", &details.Port
		case strings.HasPrefix(fieldNorm, "user="):
			prefix, fieldPtr = "user=", &details.User
		case strings.HasPrefix(fieldNorm, "dbname="):
			prefix, fieldPtr = "dbname=", &details.Schema
		default:
			continue
		}

		*fieldPtr = field[len(prefix):]
	}

	if details.Schema == "" {
		return ConnDetails{}, false
	}

	details.RawString = strings.TrimSpace(postgresKVPasswordRegex.ReplaceAllString(connStr, " "))

	return details, true
}

var mysqlKVPasswordRegex = regexp.MustCompile(`(?i)(^|;)(Pwd|Password)=[^;]+(;|$)`)

// parseMySQLConnDetailsKV parses a semicolon-separated MySQL-style connection string
func parseMySQLConnDetailsKV(connStr string) (ConnDetails, bool) {
	var details ConnDetails

	for _, field := range strings.Split(connStr, ";") {
		fieldNorm := strings.ToLower(strings.TrimSpace(field))
		field = strings.TrimSpace(field)

		var (
			prefix   string
			fieldPtr *string
		)
		switch {
		case strings.HasPrefix(fieldNorm, "server="):
			prefix, fieldPtr = "server=", &details.Host
		case strings.HasPrefix(fieldNorm, "port="):
			prefix, fieldPtr = "port=", &details.Port
		case strings.HasPrefix(fieldNorm, "uid="):
			prefix, fieldPtr = "uid=", &details.User
		case strings.HasPrefix(fieldNorm, "database="):
			prefix, fieldPtr = "database=", &details.Schema
		default:
			continue
		}

		*fieldPtr = field[len(prefix):]
	}

	if details.Schema == "" {
		return ConnDetails{}, false
	}

	details.RawString = mysqlKVPasswordRegex.ReplaceAllString(connStr, ";")

	return details, true
}
