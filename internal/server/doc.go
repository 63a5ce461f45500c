// package server runs the loopback HTTP listener that receives the
// browser login handoff during `foliox auth login`.
//
// The platform login page redirects the browser to
// http://127.0.0.1:{port}/callback?code=...&state=... after the user
// authenticates. The server validates the state token, captures the
// one-time exchange code exactly once, and delivers it over a channel
// to the waiting CLI command.
package server
