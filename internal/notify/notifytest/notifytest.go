// Package notifytest provides a fake notification provider that records every request.
package notifytest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// DefaultResponse mimics a Twilio "message queued" answer
var DefaultResponse = Response{
	StatusCode: http.StatusCreated,
	Body:       `{"sid":"SM00000000000000000000000000000001","status":"queued"}`,
}

type Server struct {
	mu        sync.Mutex
	ts        *httptest.Server
	URL       string
	requests  []Request
	responses []Response
	closed    bool
}

// Response is a canned answer returned by the server
type Response struct {
	StatusCode int
	Body       string
}

// Request is what the server recorded for a single call
type Request struct {
	Method   string
	Path     string
	Username string
	Password string
	Form     url.Values
	JSON     map[string]interface{}
}

func NewServer() *Server {
	s := new(Server)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method: r.Method,
			Path:   r.URL.Path,
		}
		req.Username, req.Password, _ = r.BasicAuth()

		data, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			json.Unmarshal(data, &req.JSON)
		} else {
			req.Form, _ = url.ParseQuery(string(data))
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		resp := DefaultResponse
		if len(s.responses) > 0 {
			resp = s.responses[0]
			s.responses = s.responses[1:]
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		io.WriteString(w, resp.Body)
	}))
	s.ts = ts
	s.URL = ts.URL
	return s
}

// Enqueue queues responses to be returned, in order, before falling back to DefaultResponse
func (s *Server) Enqueue(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.ts.Close()
}
