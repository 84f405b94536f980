//go:build !js || !wasm

package seal

import (
	"github.com/drand/tlock"
	tlockHttp "github.com/drand/tlock/networks/http"
)

// NewNetwork connects to a drand HTTP endpoint and checks its chain hash.
func NewNetwork(endpoint, chainHash string) (tlock.Network, error) {
	return tlockHttp.NewNetwork(endpoint, chainHash)
}
