// Package storage is the optional persistence layer: a message history
// appended per received message, with retention pruning. It stores history
// only; event-queue state is never persisted across restarts.
package storage
