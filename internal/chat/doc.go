// Package chat implements the event-queue API client: authenticated
// transport, wire types, and the register/long-poll/reconnect lifecycle of
// one server-side event queue.
package chat
