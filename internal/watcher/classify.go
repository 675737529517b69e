package watcher

import "chatwatch/internal/chat"

// Important reports whether a message deserves a notification: it mentions
// the user or tripped one of their alert words. Read state and any flag we
// don't recognize never matter. Pure over any flag set, including empty.
func Important(flags chat.Flags) bool {
	return flags.Has(chat.FlagMentioned) || flags.Has(chat.FlagHasAlertWord)
}
