package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Detailer is implemented by errors that carry structured data for the
// client, such as a row report or a retry delay.
type Detailer interface {
	Details() any
}

// RetryAfter is implemented by errors that know when the request may be
// repeated. The value is in seconds.
type RetryAfter interface {
	RetryAfterSeconds() int
}

// Body is the JSON error envelope.
type Body struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
	Details any    `json:"details,omitempty"`
}

// BodyFor builds the envelope for err in the language negotiated from
// acceptLanguage. The underlying message is exposed only for client errors.
func BodyFor(err error, acceptLanguage string) (int, Body) {
	ae := From(err)
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := ae.Code
	if code == "" {
		code = CodeInternal
	}
	b := Body{Error: Message(code, Negotiate(acceptLanguage)), Code: code}
	if status < 500 && ae.Err != nil {
		b.Detail = ae.Err.Error()
	}
	var d Detailer
	if errors.As(err, &d) {
		b.Details = d.Details()
	}
	return status, b
}

// Write sends err as a JSON error response.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status, body := BodyFor(err, r.Header.Get("Accept-Language"))
	var ra RetryAfter
	if errors.As(err, &ra) {
		w.Header().Set("Retry-After", strconv.Itoa(ra.RetryAfterSeconds()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
