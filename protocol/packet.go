package protocol

type (
	PacketType byte

	// Frame is one decoded unit of the wire format, before an author is attached.
	Frame struct {
		Type    PacketType
		Payload []byte
	}

	// Packet is a frame attributed to a peer. When Err is set the packet
	// carries no content and reports a failure observed on the author's
	// connection.
	Packet struct {
		Author  NodeIdentity
		Type    PacketType
		Content []byte
		Err     error
	}
)

const (
	Error = PacketType(iota)
	String
	Address
	Username
)

// TypeFromByte maps unknown values to Error.
func TypeFromByte(b byte) PacketType {
	switch t := PacketType(b); t {
	case String, Address, Username:
		return t
	default:
		return Error
	}
}

func (t PacketType) String() string {
	switch t {
	case String:
		return "string"
	case Address:
		return "address"
	case Username:
		return "username"
	default:
		return "error"
	}
}

func Success(author NodeIdentity, f Frame) Packet {
	return Packet{Author: author, Type: f.Type, Content: f.Payload}
}

func Failure(author NodeIdentity, err error) Packet {
	return Packet{Author: author, Type: Error, Err: err}
}

// Failed reports whether the packet carries an error instead of content.
func (p Packet) Failed() bool { return p.Err != nil }
