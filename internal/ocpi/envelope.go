package ocpi

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the body of every response.
type Envelope struct {
	Data          any        `json:"data,omitempty"`
	StatusCode    StatusCode `json:"status_code"`
	StatusMessage string     `json:"status_message,omitempty"`
	Timestamp     string     `json:"timestamp"`
}

// MarshalJSON always emits data on a success envelope, as null when there is
// nothing to return. Error envelopes never carry it.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type plain Envelope
	if !e.StatusCode.IsSuccess() {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		Data any `json:"data"`
		plain
	}{Data: e.Data, plain: plain(e)})
}

// now is swapped in tests.
var now = time.Now

func timestamp() string {
	return now().UTC().Format(time.RFC3339)
}

// Success wraps data in a 1000 envelope.
func Success(data any) Envelope {
	return Envelope{
		Data:          data,
		StatusCode:    StatusSuccess,
		StatusMessage: SuccessMessage,
		Timestamp:     timestamp(),
	}
}

// Failure builds the envelope for err. The cause of err is never included.
func Failure(err error) Envelope {
	oe := AsError(err)
	if oe == nil {
		oe = ErrServer(internalMessage)
	}
	return Envelope{
		StatusCode:    oe.Code,
		StatusMessage: oe.StatusMessage(),
		Timestamp:     timestamp(),
	}
}

// Response is what an endpoint returns on success.
type Response struct {
	Data any

	// HTTPStatus defaults to 200.
	HTTPStatus int

	// Page carries pagination headers for list responses.
	Page *Page
}

// OK returns a 200 response carrying data.
func OK(data any) *Response {
	return &Response{Data: data}
}

// Paged returns a 200 response carrying one page of a list.
func Paged(data any, page Page) *Response {
	return &Response{Data: data, Page: &page}
}

// WriteResponse writes resp as a success envelope, including pagination
// headers when present. Data that cannot be encoded is reported as a server
// error and no pagination headers are sent.
func WriteResponse(w http.ResponseWriter, resp *Response) *Error {
	if resp == nil {
		resp = OK(nil)
	}
	body, err := json.Marshal(Success(resp.Data))
	if err != nil {
		return WriteError(w, ErrServer(internalMessage).Wrap(err))
	}
	if resp.Page != nil {
		resp.Page.Apply(w.Header())
	}
	status := resp.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	write(w, status, body)
	return nil
}

// WriteError writes err as an error envelope and returns the typed error so
// callers can log the cause.
func WriteError(w http.ResponseWriter, err error) *Error {
	oe := AsError(err)
	if oe == nil {
		oe = ErrServer(internalMessage)
	}
	// an error envelope only holds strings and ints
	body, _ := json.Marshal(Failure(oe))
	write(w, oe.HTTPStatusCode(), body)
	return oe
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
