package ssh

import (
	"crypto/ed25519"
	"fmt"

	"github.com/andrebq/pingpong/protocol"
	gossh "golang.org/x/crypto/ssh"
)

// NewSigner wraps the node secret key so it can be used both as host key
// and as client key.
func NewSigner(secret ed25519.PrivateKey) (gossh.Signer, error) {
	signer, err := gossh.NewSignerFromKey(secret)
	if err != nil {
		return nil, fmt.Errorf("ssh: unable to create signer: %w", err)
	}
	return signer, nil
}

// IdentityOf returns the identity announced by a node using signer and
// listening at addr.
func IdentityOf(signer gossh.Signer, addr string) protocol.NodeIdentity {
	return protocol.NewIdentity(signer.PublicKey(), addr)
}
