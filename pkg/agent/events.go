package agent

// EventType identifies the kind of agent lifecycle event.
type EventType int

const (
	// EventTextDelta fires for each streamed fragment of assistant text
	EventTextDelta EventType = iota
	// EventToolCallStarted fires before executing a tool, possibly before
	// its arguments have been parsed
	EventToolCallStarted
	// EventToolCallCompleted fires after a tool execution finishes
	EventToolCallCompleted
	// EventResponseComplete fires when the agent produces a final text response
	EventResponseComplete
	// EventError fires when the agent loop encounters a fatal error
	EventError
)

// Event represents a lifecycle event emitted by the agent loop.
type Event struct {
	Type EventType
	Data any
}

// TextDeltaData carries one streamed fragment of assistant text.
type TextDeltaData struct {
	Text string
}

// ToolCallStartedData identifies a tool call that is about to execute.
type ToolCallStartedData struct {
	ID   string
	Name string
}

// ToolCallCompletedData carries the outcome of a tool call.
type ToolCallCompletedData struct {
	ID      string
	Name    string
	Result  string
	IsError bool
}

// ResponseCompleteData carries the final assistant text for the run.
type ResponseCompleteData struct {
	Content string
}

// ErrorData carries the failure that aborted the run.
type ErrorData struct {
	Err error
}

// EventListener receives lifecycle events from the agent loop.
// Implementations must be safe for concurrent use: events fire from the
// loop's goroutine while the caller may run on a different one.
type EventListener interface {
	OnEvent(event Event)
}

// ListenerFunc adapts a function to the EventListener interface.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}
