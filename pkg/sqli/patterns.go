package sqli

import (
	"regexp"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/regexcache"
)

// errorPatterns are DB-engine error signatures. A match anywhere in a
// response body indicates the injected input reached a SQL parser.
var errorPatterns = []*regexp.Regexp{
	// MySQL / MariaDB
	regexcache.MustGet(`(?i)SQL syntax.*MySQL`),
	regexcache.MustGet(`(?i)You have an error in your SQL syntax`),
	regexcache.MustGet(`(?i)Warning.*mysql_`),
	regexcache.MustGet(`(?i)mysqli?_`),
	regexcache.MustGet(`(?i)valid MySQL result`),
	regexcache.MustGet(`(?i)MySqlClient\.`),
	regexcache.MustGet(`(?i)com\.mysql\.jdbc`),
	regexcache.MustGet(`(?i)MariaDB server version`),

	// PostgreSQL
	regexcache.MustGet(`(?i)PostgreSQL.*ERROR`),
	regexcache.MustGet(`(?i)Warning.*\Wpg_`),
	regexcache.MustGet(`(?i)valid PostgreSQL result`),
	regexcache.MustGet(`(?i)Npgsql\.`),
	regexcache.MustGet(`(?i)PG::SyntaxError`),
	regexcache.MustGet(`(?i)org\.postgresql\.util\.PSQLException`),
	regexcache.MustGet(`(?i)ERROR:\s*syntax error at or near`),

	// Microsoft SQL Server
	regexcache.MustGet(`(?i)Driver.*SQL[\-\_\ ]*Server`),
	regexcache.MustGet(`(?i)OLE DB.*SQL Server`),
	regexcache.MustGet(`(?i)Warning.*mssql_`),
	regexcache.MustGet(`(?i)Microsoft SQL Native Client error`),
	regexcache.MustGet(`(?i)Msg \d+, Level \d+, State \d+`),
	regexcache.MustGet(`(?i)Unclosed quotation mark after`),
	regexcache.MustGet(`(?i)ODBC SQL Server Driver`),

	// Oracle
	regexcache.MustGet(`(?i)\bORA-[0-9]{4,}`),
	regexcache.MustGet(`(?i)Oracle error`),
	regexcache.MustGet(`(?i)Warning.*oci_`),
	regexcache.MustGet(`(?i)quoted string not properly terminated`),

	// SQLite
	regexcache.MustGet(`(?i)SQLite.*error`),
	regexcache.MustGet(`(?i)Warning.*sqlite_`),
	regexcache.MustGet(`(?i)SQLite3::`),
	regexcache.MustGet(`(?i)\[SQLITE_ERROR\]`),
	regexcache.MustGet(`(?i)SQLITE_CONSTRAINT`),

	// Generic / ORM
	regexcache.MustGet(`(?i)SQL error`),
	regexcache.MustGet(`(?i)SQL syntax`),
	regexcache.MustGet(`(?i)syntax error`),
	regexcache.MustGet(`(?i)java\.sql\.SQLException`),
	regexcache.MustGet(`(?i)Hibernate.*Query`),
	regexcache.MustGet(`(?i)Incorrect syntax near`),
	regexcache.MustGet(`(?i)unterminated quoted string`),
}

// quickKeywords gate the regex sweep: a body containing none of these
// cannot match any signature, which filters most responses cheaply.
var quickKeywords = []string{
	"sql", "mysql", "postgres", "sqlite", "oracle", "ora-",
	"odbc", "syntax", "driver", "warning", "mariadb", "npgsql",
	"hibernate", "psql", "mssql",
}

// ContainsError reports whether body carries a DB error signature and
// returns an excerpt of the match context.
func ContainsError(body string) (bool, string) {
	lower := strings.ToLower(body)
	found := false
	for _, kw := range quickKeywords {
		if strings.Contains(lower, kw) {
			found = true
			break
		}
	}
	if !found {
		return false, ""
	}

	for _, pattern := range errorPatterns {
		if loc := pattern.FindStringIndex(body); loc != nil {
			start := loc[0] - 50
			if start < 0 {
				start = 0
			}
			end := loc[1] + 50
			if end > len(body) {
				end = len(body)
			}
			return true, body[start:end]
		}
	}
	return false, ""
}

// tokenKeys identify authentication material in a login response body.
var tokenKeys = []string{`"token"`, `"authentication"`, `"access_token"`, `"jwt"`}

// containsTokenKey reports whether body looks like a successful auth
// response.
func containsTokenKey(body string) bool {
	lower := strings.ToLower(body)
	for _, key := range tokenKeys {
		if strings.Contains(lower, key) {
			return true
		}
	}
	return false
}
