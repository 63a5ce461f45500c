package stream

// Phase is the assistant's conversation phase, mirrored from the latest
// server event.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting_preferences"
	PhaseGenerating Phase = "generating"
	PhaseReviewing  Phase = "reviewing"
	PhaseComplete   Phase = "complete"
)

// Inbound event names. Connected and Disconnected are synthetic: the client
// emits them itself, they never appear on the wire.
const (
	EventConnected     = "connected"
	EventProcessing    = "processing"
	EventConversation  = "conversation"
	EventClipGenerated = "clip_generated"
	EventError         = "error"
	EventPong          = "pong"
	EventDisconnected  = "disconnected"

	// Wildcard subscribes a handler to every event, dispatched after the
	// event's named handlers.
	Wildcard = "*"
)

// Outbound frame types.
const (
	frameGenerate = "generate"
	frameMessage  = "message"
	frameApprove  = "approve"
	frameEdit     = "edit"
	framePing     = "ping"
)

// SceneEntry is one entry in the assistant's transcript.
type SceneEntry struct {
	Role       string `json:"role"`
	Text       string `json:"text"`
	SceneIndex int    `json:"sceneIndex"`
}

// Clip describes a generated clip.
type Clip struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	DurationMS int    `json:"durationMs"`
}

// Event is the inbound event envelope. Fields other than Event are present
// depending on the event name.
type Event struct {
	Event       string            `json:"event"`
	Phase       Phase             `json:"phase,omitempty"`
	Transcript  []SceneEntry      `json:"transcript,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Clip        *Clip             `json:"clip,omitempty"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`

	// Permanent is set on the synthetic disconnected event once the
	// reconnect budget is exhausted.
	Permanent bool `json:"permanent,omitempty"`
}

// frame is the outbound command envelope.
type frame struct {
	Type        string            `json:"type"`
	Prompt      string            `json:"prompt,omitempty"`
	Message     string            `json:"message,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	SceneIndex  int               `json:"sceneIndex,omitempty"`
	Text        string            `json:"text,omitempty"`
}

// Conversation is the read-only mirror of the latest server-reported state.
type Conversation struct {
	Phase       Phase
	Transcript  []SceneEntry
	Preferences map[string]string
}
