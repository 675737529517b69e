package watcher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"chatwatch/internal/chat"
	"chatwatch/internal/notify"
	"chatwatch/pkg/logx"
)

type scriptTransport struct {
	mu    sync.Mutex
	posts []string
	gets  []string

	getPaths []string
}

func (s *scriptTransport) Post(context.Context, string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.posts) == 0 {
		return nil, &chat.TransportError{Op: "post", Err: errors.New("script exhausted")}
	}
	b := s.posts[0]
	s.posts = s.posts[1:]
	return []byte(b), nil
}

func (s *scriptTransport) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getPaths = append(s.getPaths, path)
	if len(s.gets) == 0 {
		return nil, &chat.TransportError{Op: "get", Err: errors.New("script exhausted")}
	}
	b := s.gets[0]
	s.gets = s.gets[1:]
	return []byte(b), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func TestWatcherEndToEnd(t *testing.T) {
	t.Parallel()
	// register -> Q1/cursor 5; one batch with a heartbeat (6) and a mentioned
	// message (7); the following poll fails so Run terminates.
	tr := &scriptTransport{
		posts: []string{`{"result":"success","queue_id":"Q1","last_event_id":5}`},
		gets: []string{`{"result":"success","events":[
			{"id":6,"type":"heartbeat"},
			{"id":7,"type":"message","flags":["mentioned"],
			 "message":{"content":"ship it","display_recipient":"general",
			 "sender_full_name":"Ada","timestamp":1700000000,"type":"stream"}}]}`},
	}

	site := chat.Site{Name: "demo", User: "u", Token: "t"}
	client := chat.NewQueueClient(site, tr, logx.Nop())
	var out bytes.Buffer
	notif := &fakeNotifier{}

	w := New(site, client, &out, notif, nil, logx.Nop())
	err := w.Run(context.Background())
	if err == nil {
		t.Fatal("Run should terminate with the scripted poll failure")
	}
	var trErr *chat.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("want *TransportError, got %v", err)
	}

	// One console line, marked important, fixed-width site column.
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d console lines, want 1:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "! demo") {
		t.Fatalf("line not marked important: %q", lines[0])
	}
	if !strings.Contains(lines[0], "@Ada -> #general") || !strings.Contains(lines[0], ": ship it") {
		t.Fatalf("unexpected rendering: %q", lines[0])
	}

	// One notification with site+header summary and the content as body.
	if len(notif.sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notif.sent))
	}
	n := notif.sent[0]
	if n.Site != "demo" || n.Body != "ship it" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if !strings.HasPrefix(n.Summary, "demo [") || !strings.Contains(n.Summary, "@Ada -> #general") {
		t.Fatalf("unexpected summary: %q", n.Summary)
	}

	// Cursor advanced to 7 and was sent on the final poll.
	last := tr.getPaths[len(tr.getPaths)-1]
	if !strings.Contains(last, "last_event_id=7") {
		t.Fatalf("final poll did not carry advanced cursor: %s", last)
	}

	s := w.Stats()
	if s.Events != 2 || s.Messages != 1 || s.Important != 1 || s.Heartbeats != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestWatcherUnimportantMessage(t *testing.T) {
	t.Parallel()
	tr := &scriptTransport{
		posts: []string{`{"result":"success","queue_id":"Q1","last_event_id":5}`},
		gets: []string{`{"result":"success","events":[
			{"id":6,"type":"message","flags":["read"],
			 "message":{"content":"fyi","display_recipient":[{"full_name":"A"}],
			 "sender_full_name":"Bob","timestamp":1700000000,"type":"private"}}]}`},
	}

	site := chat.Site{Name: "demo", User: "u", Token: "t"}
	var out bytes.Buffer
	notif := &fakeNotifier{}
	w := New(site, chat.NewQueueClient(site, tr, logx.Nop()), &out, notif, nil, logx.Nop())
	_ = w.Run(context.Background())

	line := out.String()
	if !strings.HasPrefix(line, "  demo") {
		t.Fatalf("unimportant message mis-marked: %q", line)
	}
	if len(notif.sent) != 0 {
		t.Fatalf("unimportant message must not notify, got %d", len(notif.sent))
	}
}

func TestWatcherUnknownEvents(t *testing.T) {
	t.Parallel()
	tr := &scriptTransport{
		posts: []string{`{"result":"success","queue_id":"Q1","last_event_id":5}`},
		gets:  []string{`{"result":"success","events":[{"id":6,"type":"reaction"}]}`},
	}

	site := chat.Site{Name: "demo", User: "u", Token: "t"}
	var out bytes.Buffer
	w := New(site, chat.NewQueueClient(site, tr, logx.Nop()), &out, nil, nil, logx.Nop())
	_ = w.Run(context.Background())

	if out.Len() != 0 {
		t.Fatalf("unknown events must not hit the console feed: %q", out.String())
	}
	if s := w.Stats(); s.Unknown != 1 {
		t.Fatalf("Unknown = %d, want 1", s.Unknown)
	}
}

func TestWatcherRegisterFailure(t *testing.T) {
	t.Parallel()
	tr := &scriptTransport{
		posts: []string{`{"result":"error","msg":"bad auth"}`},
	}
	site := chat.Site{Name: "demo", User: "u", Token: "t"}
	w := New(site, chat.NewQueueClient(site, tr, logx.Nop()), &bytes.Buffer{}, nil, nil, logx.Nop())

	err := w.Run(context.Background())
	var apiErr *chat.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError from register, got %v", err)
	}
	if !strings.Contains(err.Error(), "register") {
		t.Fatalf("error lost register context: %v", err)
	}
}
