package protocol

import (
	"encoding/base64"
	"fmt"
	"net"
	"strings"

	gossh "golang.org/x/crypto/ssh"
)

type (
	// NodeIdentity names a node by the public key it authenticates with and
	// the address where it can be reached.
	//
	// The same type describes raw identities: for inbound connections Addr is
	// the remote address of the connection rather than a listening endpoint.
	NodeIdentity struct {
		key  string
		addr string
	}

	// PeerID is the address independent part of a NodeIdentity, the
	// base64url encoding of its public key. Two identities with the same
	// PeerID are the same node even if they announce different addresses.
	PeerID string
)

// NewIdentity from an ssh public key and a host:port address
func NewIdentity(key gossh.PublicKey, addr string) NodeIdentity {
	if key == nil {
		return NodeIdentity{addr: addr}
	}
	return NodeIdentity{key: string(key.Marshal()), addr: addr}
}

// ParseIdentity reads the textual form produced by NodeIdentity.String:
// <base64url(ssh public key)>@<host:port>
func ParseIdentity(txt string) (NodeIdentity, error) {
	enc, addr, found := strings.Cut(strings.TrimSpace(txt), "@")
	if !found {
		return NodeIdentity{}, fmt.Errorf("%w: missing address in %q", ErrIdentityResolutionFailed, txt)
	}
	wire, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return NodeIdentity{}, fmt.Errorf("%w: invalid key encoding: %v", ErrIdentityResolutionFailed, err)
	}
	key, err := gossh.ParsePublicKey(wire)
	if err != nil {
		return NodeIdentity{}, fmt.Errorf("%w: invalid key: %v", ErrIdentityResolutionFailed, err)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return NodeIdentity{}, fmt.Errorf("%w: invalid address: %v", ErrIdentityResolutionFailed, err)
	}
	return NewIdentity(key, addr), nil
}

func (n NodeIdentity) String() string {
	if n.IsZero() {
		return ""
	}
	return fmt.Sprintf("%v@%v", n.ID(), n.addr)
}

func (n NodeIdentity) Addr() string { return n.addr }

// ID of the node, empty when the identity has no key.
func (n NodeIdentity) ID() PeerID {
	if n.key == "" {
		return ""
	}
	return PeerID(base64.RawURLEncoding.EncodeToString([]byte(n.key)))
}

func (n NodeIdentity) IsZero() bool { return n.key == "" && n.addr == "" }

func (n NodeIdentity) PublicKey() (gossh.PublicKey, error) {
	if n.key == "" {
		return nil, fmt.Errorf("%w: identity without key", ErrIdentityResolutionFailed)
	}
	return gossh.ParsePublicKey([]byte(n.key))
}

// Fingerprint in the same format used by ssh-keygen -l
func (n NodeIdentity) Fingerprint() string {
	key, err := n.PublicKey()
	if err != nil {
		return ""
	}
	return gossh.FingerprintSHA256(key)
}

// SameKey reports whether both identities authenticate with the same key,
// regardless of their addresses.
func (n NodeIdentity) SameKey(other NodeIdentity) bool {
	return n.key != "" && n.key == other.key
}

// WithAddr returns a copy of n reachable at addr.
func (n NodeIdentity) WithAddr(addr string) NodeIdentity {
	n.addr = addr
	return n
}

func (n NodeIdentity) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *NodeIdentity) UnmarshalText(buf []byte) error {
	id, err := ParseIdentity(string(buf))
	if err != nil {
		return err
	}
	*n = id
	return nil
}
