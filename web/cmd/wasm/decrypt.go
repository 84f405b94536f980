//go:build js && wasm

package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"syscall/js"

	"lurk-zk/pkg/proofs"
	"lurk-zk/pkg/seal"
	"lurk-zk/pkg/zstore"
)

func decodeCapsule(b64 string) (*seal.Capsule, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64")
	}
	return proofs.Decode[seal.Capsule](raw)
}

// inspectCapsule reports a capsule's round and commitment without
// decrypting it.
// Args: capsuleBase64 (CBOR)
func inspectCapsule(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResponse("args: capsuleBase64")
	}
	c, err := decodeCapsule(args[0].String())
	if err != nil {
		return errorResponse(err.Error())
	}
	if err := c.Validate(c.ChainHash, c.Round); err != nil {
		return errorResponse(err.Error())
	}
	return map[string]interface{}{
		"round":          int(c.Round),
		"chain_hash":     hex.EncodeToString(c.ChainHash),
		"comm":           c.Comm.String(),
		"ciphertext_len": len(c.Ciphertext),
	}
}

// unlockCapsule decrypts a capsule using pre-fetched drand data.
// Args: capsuleBase64, chainInfoJSON, beaconSignatureHex
// Returns: {payload, secret} or {error}
func unlockCapsule(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResponse("args: capsuleBase64, chainInfoJSON, beaconSignatureHex")
	}
	c, err := decodeCapsule(args[0].String())
	if err != nil {
		return errorResponse(err.Error())
	}
	network, err := seal.NewNetworkFromChainInfo(args[1].String(), hex.EncodeToString(c.ChainHash))
	if err != nil {
		return errorResponse(err.Error())
	}
	if err := network.SetBeacon(c.Round, args[2].String()); err != nil {
		return errorResponse(err.Error())
	}

	cd, err := seal.Unlock(context.Background(), network, c)
	if err != nil {
		return errorResponse(fmt.Sprintf("unlock failed: %v", err))
	}
	store := zstore.NewStore()
	if err := cd.PopulateZStore(store); err != nil {
		return errorResponse(err.Error())
	}
	return map[string]interface{}{
		"payload": store.Fmt(store.Ingress(cd.Payload)),
		"secret":  cd.Secret.String(),
	}
}
