package seal

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Stanza is one recipient line of an age header, without its body.
type Stanza struct {
	Type string
	Args []string
}

// Header lists the recipient stanzas of a sealed payload.
type Header struct {
	Stanzas []Stanza
}

// ParseHeader reads the age header of sealed. Payloads stay encrypted.
func ParseHeader(sealed []byte) (*Header, error) {
	data, err := io.ReadAll(dearmor(sealed))
	if err != nil {
		return nil, err
	}

	const headerEndMarker = "\n---"
	end := bytes.Index(data, []byte(headerEndMarker))
	if end == -1 {
		return nil, fmt.Errorf("invalid age format: no header end marker")
	}

	h := &Header{}
	for _, line := range strings.Split(string(data[:end]), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-> ") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "-> "))
		if len(fields) == 0 {
			return nil, fmt.Errorf("invalid age format: empty stanza")
		}
		h.Stanzas = append(h.Stanzas, Stanza{Type: fields[0], Args: fields[1:]})
	}
	return h, nil
}

// Timelock returns the round and chain hash of the tlock stanza.
func (h *Header) Timelock() (round uint64, chainHash string, err error) {
	for _, s := range h.Stanzas {
		if s.Type != "tlock" {
			continue
		}
		if len(s.Args) < 2 {
			return 0, "", fmt.Errorf("truncated tlock stanza")
		}
		round, err = strconv.ParseUint(s.Args[0], 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("invalid tlock round: %w", err)
		}
		return round, s.Args[1], nil
	}
	return 0, "", fmt.Errorf("%w: tlock", ErrNoStanza)
}
