package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATEs worth retrying while a server comes up or sheds load.
const (
	sqlstateCannotConnectNow   = "57P03"
	sqlstateTooManyConnections = "53300"
	sqlstateConnectionClass    = "08"
)

// IsTransient reports whether err is likely to clear on its own: network
// timeouts, refused or reset connections, and Postgres startup or
// connection-limit errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateCannotConnectNow ||
			pgErr.Code == sqlstateTooManyConnections ||
			strings.HasPrefix(pgErr.Code, sqlstateConnectionClass)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"i/o timeout",
		"the database system is starting up",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
