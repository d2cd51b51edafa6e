package media

// MessageKind tags a Message travelling through a frame queue.
type MessageKind uint8

const (
	// MessageFrame carries a decoded frame.
	MessageFrame MessageKind = iota
	// MessageEndOfStream is queued once after the last frame of a stream.
	// Consumers keep waiting after it.
	MessageEndOfStream
	// MessageShutdown terminates the consumer that pops it.
	MessageShutdown
)

func (k MessageKind) String() string {
	switch k {
	case MessageFrame:
		return "frame"
	case MessageEndOfStream:
		return "end-of-stream"
	case MessageShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Message is the element type of the decode-to-dispatch queues.
type Message struct {
	Kind  MessageKind
	Frame *Frame
}

// FrameMessage wraps f for queueing.
func FrameMessage(f *Frame) Message {
	return Message{Kind: MessageFrame, Frame: f}
}

// EndOfStream returns the message queued after a stream's last frame.
func EndOfStream() Message {
	return Message{Kind: MessageEndOfStream}
}

// Shutdown returns the terminating message.
func Shutdown() Message {
	return Message{Kind: MessageShutdown}
}
