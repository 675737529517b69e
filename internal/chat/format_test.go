package chat

import (
	"testing"
	"time"
)

func TestRecipientsRendering(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		r    Recipients
		want string
	}{
		{name: "stream", r: StreamRecipients("general"), want: "#general"},
		{name: "two users", r: UserRecipients(User{FullName: "A"}, User{FullName: "B"}), want: "@A,@B"},
		{name: "one user", r: UserRecipients(User{FullName: "A"}), want: "@A"},
		{name: "no users", r: UserRecipients(), want: "<no users>"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageHeader(t *testing.T) {
	t.Parallel()
	m := &Message{
		Content:        "lunch?",
		Recipients:     StreamRecipients("general"),
		SenderFullName: "Ada Lovelace",
		Timestamp:      time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC),
		Kind:           "stream",
	}

	got := m.HeaderIn(time.UTC)
	want := "[22:13:20] @Ada Lovelace -> #general"
	if got != want {
		t.Fatalf("HeaderIn = %q, want %q", got, want)
	}
}
