// Package seal shares commitment openings privately, either with age
// recipients or behind a drand timelock.
package seal

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"filippo.io/age/armor"

	"lurk-zk/pkg/comm"
)

var (
	ErrNoRecipients    = errors.New("no recipients provided")
	ErrNetworkMismatch = errors.New("network ID mismatch")
	ErrRoundMismatch   = errors.New("round mismatch")
	ErrCommMismatch    = errors.New("opening does not match commitment")
	ErrNoStanza        = errors.New("stanza not found in header")
)

// SealForRecipients encrypts cd to recipients and armors the result.
func SealForRecipients(cd *comm.CommData, recipients ...age.Recipient) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	plain, err := cd.Encode()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipients...)
	if err != nil {
		return nil, fmt.Errorf("age encryption failed: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open decrypts a sealed opening. Armored and binary inputs are both
// accepted.
func Open(sealed []byte, identities ...age.Identity) (*comm.CommData, error) {
	r, err := age.Decrypt(dearmor(sealed), identities...)
	if err != nil {
		return nil, fmt.Errorf("age decryption failed: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decode(plain)
}

func decode(plain []byte) (*comm.CommData, error) {
	cd, err := comm.Decode(plain)
	if err != nil {
		return nil, err
	}
	if cd.PayloadIsFlawed() {
		return nil, comm.ErrFlawedPayload
	}
	return cd, nil
}

func dearmor(data []byte) io.Reader {
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte(armor.Header)) {
		return armor.NewReader(bytes.NewReader(data))
	}
	return bytes.NewReader(data)
}
