package chat

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestSiteAPIURL(t *testing.T) {
	t.Parallel()
	s := Site{Name: "demo", User: "u", Token: "t"}
	got := s.apiURL("events?queue_id=Q1")
	want := "https://demo." + DefaultHost + "/api/v1/events?queue_id=Q1"
	if got != want {
		t.Fatalf("apiURL = %q, want %q", got, want)
	}

	s.Host = "chat.example.org"
	if got := s.apiURL("register"); got != "https://demo.chat.example.org/api/v1/register" {
		t.Fatalf("apiURL with host override = %q", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHTTPTransportRequestShape(t *testing.T) {
	t.Parallel()
	var seen *http.Request
	tr := NewHTTPTransport(Site{Name: "demo", User: "bot@demo", Token: "secret"}, TransportConfig{UserAgent: "chatwatch-test"})
	tr.client.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return &http.Response{
			StatusCode: http.StatusBadRequest, // API errors still carry a body
			Body:       io.NopCloser(strings.NewReader(`{"result":"error","msg":"nope"}`)),
			Header:     http.Header{},
		}, nil
	})

	body, err := tr.Post(context.Background(), "register")
	if err != nil {
		t.Fatalf("Post: non-2xx status must not be a transport failure: %v", err)
	}
	if !strings.Contains(string(body), `"result":"error"`) {
		t.Fatalf("body lost: %s", body)
	}

	if seen == nil {
		t.Fatal("no request sent")
	}
	user, pass, ok := seen.BasicAuth()
	if !ok || user != "bot@demo" || pass != "secret" {
		t.Fatalf("basic auth = %q/%q (%v)", user, pass, ok)
	}
	if got := seen.Header.Get("User-Agent"); got != "chatwatch-test" {
		t.Fatalf("User-Agent = %q", got)
	}
	if seen.URL.String() != "https://demo."+DefaultHost+"/api/v1/register" {
		t.Fatalf("URL = %s", seen.URL)
	}
}
