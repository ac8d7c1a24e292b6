package testutils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/julienschmidt/httprouter"
)

// Server couples an httptest server with the router it serves, so that tests
// can register handlers on the fly.
type Server struct {
	*httptest.Server
	Router *httprouter.Router
}

// NewServer starts an HTTP test server backed by an httprouter router.
func NewServer() *Server {
	router := httprouter.New()
	return &Server{Server: httptest.NewServer(router), Router: router}
}

// NewTLSServer starts an HTTPS test server with a self signed certificate.
func NewTLSServer() *Server {
	router := httprouter.New()
	return &Server{Server: httptest.NewTLSServer(router), Router: router}
}

// EchoedRequest is the payload written back by the Echo handler.
type EchoedRequest struct {
	Method  string      `json:"method"`
	Path    string      `json:"path"`
	Query   url.Values  `json:"query"`
	Headers http.Header `json:"headers"`
	Host    string      `json:"host"`
	Body    string      `json:"body"`
}

// Echo replies with a JSON description of the request it received.
func Echo() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body, _ := io.ReadAll(r.Body)
		echoed := EchoedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Headers: r.Header.Clone(),
			Host:    r.Host,
			Body:    string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoed)
	}
}

// Status replies with the given status code and an empty body.
func Status(code int) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(code)
	}
}
