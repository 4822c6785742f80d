package apt

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// ErrNoPrivateKey is returned when a key ring holds no private key to sign with.
var ErrNoPrivateKey = errors.New("no private key found")

// signer returns the first entity of the armored key ring that can sign.
func signer(key string) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(key))
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if e.PrivateKey != nil {
			return e, nil
		}
	}
	return nil, ErrNoPrivateKey
}

// Sign clearsigns input with the armored private key, as in an InRelease file.
func Sign(input []byte, key string) ([]byte, error) {
	e, err := signer(key)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	w, err := clearsign.Encode(&out, e.PrivateKey, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(input); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// PublicKey extracts the public key from an ASCII-armored PGP private key.
// If armored is true, it returns the public key in ASCII-armored format.
// Otherwise, it returns the binary serialized public key.
func PublicKey(key string, armored bool) ([]byte, error) {
	e, err := signer(key)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if !armored {
		if err := e.Serialize(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := e.Serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
