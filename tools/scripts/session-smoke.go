// Package main provides a CI-friendly smoke test for the coursehub session API.
//
// It validates:
//   - register issues a session
//   - a second login from another "device" shows up in the session list
//   - close-others signs the first device out
//   - logout turns the current token into a 401 no_session
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type issued struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Session struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	} `json:"session"`
}

type sessionList struct {
	Sessions []struct {
		ID      string `json:"id"`
		Device  string `json:"device"`
		Current bool   `json:"current"`
	} `json:"sessions"`
}

type apiError struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

type smoke struct {
	base    string
	client  *http.Client
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		email    = flag.String("email", "", "Account email (default: a fresh smoke+<ts>@example.com)")
		password = flag.String("password", "smoke test passphrase", "Account password")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *email == "" {
		*email = fmt.Sprintf("smoke+%d@example.com", time.Now().UnixNano())
	}

	s := &smoke{
		base:    strings.TrimRight(*baseURL, "/"),
		client:  &http.Client{},
		timeout: *timeout,
		verbose: *verbose,
	}
	root := context.Background()

	var laptop issued
	s.mustDo(root, http.MethodPost, "/auth/register", "", "smoke-laptop",
		map[string]string{"email": *email, "password": *password, "device": "smoke laptop"},
		http.StatusCreated, &laptop)
	if laptop.Session.Token == "" {
		fatalf("register: no token issued")
	}

	var phone issued
	s.mustDo(root, http.MethodPost, "/auth/login", "", "smoke-phone",
		map[string]string{"email": *email, "password": *password, "device": "smoke phone"},
		http.StatusOK, &phone)
	if phone.User.ID != laptop.User.ID {
		fatalf("login: user mismatch: %s != %s", phone.User.ID, laptop.User.ID)
	}

	var list sessionList
	s.mustDo(root, http.MethodGet, "/auth/sessions", phone.Session.Token, "", nil, http.StatusOK, &list)
	if len(list.Sessions) != 2 {
		fatalf("sessions: got %d want 2", len(list.Sessions))
	}
	for _, sess := range list.Sessions {
		if sess.Current != (sess.ID == phone.Session.ID) {
			fatalf("sessions: wrong current flag on %s", sess.ID)
		}
	}

	var closed struct {
		Closed int64 `json:"closed"`
	}
	s.mustDo(root, http.MethodPost, "/auth/sessions/close-others", phone.Session.Token, "", nil, http.StatusOK, &closed)
	if closed.Closed != 1 {
		fatalf("close-others: closed=%d want 1", closed.Closed)
	}
	s.mustReject(root, laptop.Session.Token, "no_session")

	s.mustDo(root, http.MethodPost, "/auth/logout", phone.Session.Token, "", nil, http.StatusNoContent, nil)
	s.mustReject(root, phone.Session.Token, "no_session")

	fmt.Printf("OK: user=%s laptop=%s phone=%s\n", laptop.User.ID, laptop.Session.ID, phone.Session.ID)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// mustDo sends one request and decodes the response into out when out is non-nil.
func (s *smoke) mustDo(parent context.Context, method, path, token, agent string, body any, want int, out any) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	status, raw := s.do(ctx, method, path, token, agent, body)
	if status != want {
		fatalf("%s %s: status=%d want=%d body=%s", method, path, status, want, raw)
	}
	if s.verbose {
		fmt.Printf("%s %s -> %d\n", method, path, status)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

// mustReject asserts GET /me answers 401 with the given error code.
func (s *smoke) mustReject(parent context.Context, token, wantCode string) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	status, raw := s.do(ctx, http.MethodGet, "/me", token, "", nil)
	if status != http.StatusUnauthorized {
		fatalf("GET /me: status=%d want=401 body=%s", status, raw)
	}
	var e apiError
	if err := json.Unmarshal(raw, &e); err != nil {
		fatalf("GET /me: decode error: %v", err)
	}
	if e.Error.Code != wantCode {
		fatalf("GET /me: code=%q want=%q", e.Error.Code, wantCode)
	}
}

func (s *smoke) do(ctx context.Context, method, path, token, agent string, body any) (int, []byte) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, rd)
	if err != nil {
		fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read: %v", method, path, err)
	}
	return resp.StatusCode, raw
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
