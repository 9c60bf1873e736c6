package shared

// MessageType identifies a websocket message sent from the server to a client.
type MessageType int

const (
	MessageTypeOutput  MessageType = 0 // result of a statement
	MessageTypeError   MessageType = 1 // statement failed; Kind names the error kind
	MessageTypeSession MessageType = 2 // session established, Content holds the banner
	MessageTypeExit    MessageType = 3 // session ended by the exit keyword
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeOutput:
		return "output"
	case MessageTypeError:
		return "error"
	case MessageTypeSession:
		return "session"
	case MessageTypeExit:
		return "exit"
	}
	return "unknown"
}

// Message is the JSON frame written to websocket clients.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`

	// Für SESSION
	SessionID string `json:"sessionId,omitempty"`

	// Für OUTPUT und ERROR: die auslösende Eingabezeile
	Input string `json:"input,omitempty"`
	// Für ERROR
	Kind string `json:"kind,omitempty"`
}
