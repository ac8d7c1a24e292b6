package session

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	retryablehttp "github.com/projectdiscovery/retryablehttp-go"
	"github.com/projectdiscovery/utils/generic"
	pdhttputil "github.com/projectdiscovery/utils/http"
)

// Response contains the response to a request
type Response struct {
	StatusCode    int
	Headers       http.Header
	Data          []byte
	ContentLength int
	URL           string
	Raw           string
	RawHeaders    string
	RequestDump   string
	Duration      time.Duration
}

func (s *Session) buildResponse(httpresp *http.Response) (*Response, error) {
	var resp Response

	resp.Headers = httpresp.Header.Clone()
	if httpresp.Request != nil {
		resp.URL = httpresp.Request.URL.String()
	}

	headers, rawResp, err := pdhttputil.DumpResponseHeadersAndRaw(httpresp)
	if err != nil {
		return nil, err
	}
	resp.Raw = string(rawResp)
	resp.RawHeaders = string(headers)

	var respbody []byte
	// body shouldn't be read with the following status codes
	// 101 - Switching Protocols => websockets don't have a readable body
	// 304 - Not Modified => no body, the response terminates with the latest header newline
	if !generic.EqualsAny(httpresp.StatusCode, http.StatusSwitchingProtocols, http.StatusNotModified) {
		respbody, err = io.ReadAll(io.LimitReader(httpresp.Body, s.Options.MaxResponseBodySize))
		if err != nil {
			return nil, err
		}
	}
	if err := httpresp.Body.Close(); err != nil {
		return nil, err
	}

	respbody, err = decodeBody(respbody, httpresp.Header)
	if err != nil {
		return nil, err
	}
	resp.Data = respbody

	resp.ContentLength = int(httpresp.ContentLength)
	if resp.ContentLength <= 0 {
		if contentLength, ok := resp.Headers["Content-Length"]; ok && len(contentLength) > 0 {
			contentLengthInt, _ := strconv.Atoi(contentLength[0])
			resp.ContentLength = contentLengthInt
		}
		if resp.ContentLength <= 0 && len(respbody) > 0 {
			resp.ContentLength = len(respbody)
		}
	}

	resp.StatusCode = httpresp.StatusCode
	return &resp, nil
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.Data)
}

// Code reports whether the status code is one of the given values.
func (r *Response) Code(codes ...int) bool {
	return generic.EqualsAny(r.StatusCode, codes...)
}

// Contains reports whether the body contains the given string.
func (r *Response) Contains(value string) bool {
	return strings.Contains(string(r.Data), value)
}

// Match reports whether the body matches the given regular expression.
func (r *Response) Match(pattern string) (bool, error) {
	return regexp.Match(pattern, r.Data)
}

// Expect returns an UnexpectedStatusCodeError unless the status code is one
// of the given values.
func (r *Response) Expect(codes ...int) error {
	if r.Code(codes...) {
		return nil
	}
	return &UnexpectedStatusCodeError{URL: r.URL, StatusCode: r.StatusCode, Expected: codes}
}

// JSON unmarshals the response body into the given value.
func (r *Response) JSON(value any) error {
	return json.Unmarshal(r.Data, value)
}

// GetHeader value
func (r *Response) GetHeader(name string) string {
	v, ok := r.Headers[http.CanonicalHeaderKey(name)]
	if ok {
		return strings.Join(v, " ")
	}
	return ""
}

// StoreTxt writes the raw request and response to a file.
func (r *Response) StoreTxt(path string) error {
	dump := r.RequestDump + "\n\n" + r.Raw
	return os.WriteFile(path, []byte(dump), 0644)
}

// dumpRequest renders the request the way it goes on the wire, from the
// pieces the session assembled itself.
func dumpRequest(req *retryablehttp.Request, body []byte) string {
	builder := &strings.Builder{}
	path := req.URL.RequestURI()
	if path == "" {
		path = "/"
	}
	builder.WriteString(req.Method + " " + path + " HTTP/1.1\r\n")
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	builder.WriteString("Host: " + host + "\r\n")
	for name, values := range req.Header {
		for _, value := range values {
			builder.WriteString(name + ": " + value + "\r\n")
		}
	}
	builder.WriteString("\r\n")
	builder.Write(body)
	return builder.String()
}
