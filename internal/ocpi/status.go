// Package ocpi implements the protocol's response envelope, its numeric
// status-code taxonomy and the pagination headers of list endpoints.
//
// Every body the gateway sends, including errors, is an Envelope:
//
//	{"data": ..., "status_code": 1000, "status_message": "Success", "timestamp": "2024-01-01T00:00:00Z"}
//
// Status codes are grouped in families: 1xxx success, 2xxx client errors and
// 3xxx server errors. Partners branch on the family, so the gateway keeps the
// mapping coarse rather than exposing one code per internal check.
package ocpi

// StatusCode is a protocol status code carried in the envelope.
type StatusCode int

const (
	StatusSuccess StatusCode = 1000

	StatusClientError       StatusCode = 2000
	StatusInvalidParameters StatusCode = 2001

	StatusServerError StatusCode = 3000
)

// SuccessMessage is the fixed status_message of every success envelope.
const SuccessMessage = "Success"

// IsSuccess reports whether c is in the 1xxx family.
func (c StatusCode) IsSuccess() bool { return c >= 1000 && c < 2000 }

// IsClientError reports whether c is in the 2xxx family.
func (c StatusCode) IsClientError() bool { return c >= 2000 && c < 3000 }

// IsServerError reports whether c is in the 3xxx family.
func (c StatusCode) IsServerError() bool { return c >= 3000 && c < 4000 }

// Family returns a short label used for metrics and logs.
func (c StatusCode) Family() string {
	switch {
	case c.IsSuccess():
		return "success"
	case c.IsClientError():
		return "client_error"
	case c.IsServerError():
		return "server_error"
	default:
		return "unknown"
	}
}
