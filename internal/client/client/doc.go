// Package client talks to the chatterbox HTTP API on behalf of chatctl.
//
// Error bodies of the form {"isSuccess":false,"kind":...,"message":...} are
// turned back into the sentinel errors of internal/common, so callers can
// match them with errors.Is just like the server does. Transport failures
// are reported as ErrUnavailable.
package client
