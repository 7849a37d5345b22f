package goAuthClient

import (
	"encoding/json"
	"io"
	"net/http"
)

// Transport sends one HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to [Transport].
type TransportFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f TransportFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func defaultTransport(cfg TransportConfig) Transport {
	return &http.Client{Timeout: cfg.Timeout}
}

// roundTrip performs one exchange and converts it into a Response or a
// *ResponseError. expiredCode marks which 401 body code is renewable.
func roundTrip(t Transport, hreq *http.Request, req *Request, expiredCode string) (*Response, error) {
	hresp, err := t.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	body, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, err
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		rerr := &ResponseError{
			StatusCode: hresp.StatusCode,
			Code:       errorCode(body),
			Body:       body,
			Method:     hreq.Method,
			Path:       req.Path,
			RequestID:  req.ID,
		}
		rerr.expired = rerr.StatusCode == http.StatusUnauthorized && rerr.Code == expiredCode
		return nil, rerr
	}

	return &Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       body,
	}, nil
}

// errorCode returns the "code" field of a JSON error body, or "".
func errorCode(body []byte) string {
	var payload struct {
		Code string `json:"code"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Code
}
