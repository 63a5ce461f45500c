// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for the clip assistant:
//  1. [ConnectingView] : Establish the event-stream connection
//  2. [ChatView] : Exchange messages with the assistant and watch the transcript
//  3. [ClipView] : Inspect the generated clip, approve or keep editing
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Stream events flow through a channel pumped by a wildcard subscription on the
// stream client, providing non-blocking delivery into the update loop.
//
// Keyboard navigation uses vim-style bindings (enter, esc, ctrl+a, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
