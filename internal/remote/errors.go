package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ConnectivityError means the request never produced a response: refused
// connection, timeout, DNS failure. The reconciliation policy treats these
// as "backend offline" and falls back to the local ledger.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ApplicationError means the backend answered with an error status. These
// must never be absorbed into local state; the server message surfaces to
// the user.
type ApplicationError struct {
	Status  int
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

func IsConnectivity(err error) bool {
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}

func IsApplication(err error) bool {
	var appErr *ApplicationError
	return errors.As(err, &appErr)
}
