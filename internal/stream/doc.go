// Package stream implements the real-time client for the clip-generation
// assistant.
//
// The client wraps a coder/websocket connection with token-gated setup,
// heartbeat keep-alive, bounded automatic reconnection and a typed
// publish/subscribe surface. Connection setup is two-step: a short-lived
// connection token is fetched over the authenticated HTTP pipeline, then the
// socket is dialed with that token as a query parameter.
//
// Reconnection uses linear backoff (delay * attempt) with a budget of three
// attempts. A session here is short-lived and interactive; exponential
// growth would just make the user wait longer than the session is worth.
// Clean client-initiated closes never reconnect. When the budget is spent
// the client emits a final synthetic "disconnected" event with Permanent set
// so subscribers are not left inferring loss from silence.
//
// The client mirrors phase, transcript and preference fields from inbound
// events into a local conversation snapshot, so late subscribers can read
// current state without replaying every event.
package stream
