//go:build js && wasm

package main

import (
	"encoding/base64"
	"encoding/hex"
	"syscall/js"

	"lurk-zk/pkg/comm"
	"lurk-zk/pkg/eval"
	"lurk-zk/pkg/reader"
	"lurk-zk/pkg/zstore"
)

// lurkEval evaluates source text in the empty environment.
// Args: source (string)
// Returns: {result: string, steps: int} or {error}
func lurkEval(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResponse("args: source")
	}
	store := zstore.NewStore()
	expr, err := reader.Read(store, args[0].String())
	if err != nil {
		return errorResponse(err.Error())
	}
	m, err := eval.NewMachine(store, eval.WithStepLimit(1_000_000))
	if err != nil {
		return errorResponse(err.Error())
	}
	res, rec, err := m.Eval(expr, store.EmptyEnv())
	if err != nil {
		return errorResponse(err.Error())
	}
	return map[string]interface{}{
		"result": store.Fmt(res),
		"steps":  int(rec.Steps),
		"depth":  int(rec.Depth),
	}
}

// verifyCommData checks that an opening matches a commitment.
// Args: commDataBase64 (CBOR), commHex
// Returns: {success, payload}
func verifyCommData(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResponse("args: commDataBase64, commHex")
	}
	raw, err := base64.StdEncoding.DecodeString(args[0].String())
	if err != nil {
		return errorResponse("invalid base64")
	}
	cd, err := comm.Decode(raw)
	if err != nil {
		return errorResponse(err.Error())
	}
	want, err := hex.DecodeString(args[1].String())
	if err != nil {
		return errorResponse("invalid comm hex")
	}
	digest, err := zstore.DigestFromBytes(want)
	if err != nil {
		return errorResponse(err.Error())
	}
	if cd.PayloadIsFlawed() {
		return failure(comm.ErrFlawedPayload)
	}
	if cd.Hash() != digest {
		return map[string]interface{}{
			"success": false,
			"error":   "opening does not match commitment",
		}
	}

	store := zstore.NewStore()
	if err := cd.PopulateZStore(store); err != nil {
		return failure(err)
	}
	return map[string]interface{}{
		"success": true,
		"payload": store.Fmt(store.Ingress(cd.Payload)),
	}
}

func failure(err error) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
}

func errorResponse(msg string) map[string]interface{} {
	return map[string]interface{}{
		"error": msg,
	}
}

func main() {
	c := make(chan struct{})
	js.Global().Set("lurkEval", js.FuncOf(lurkEval))
	js.Global().Set("verifyCommData", js.FuncOf(verifyCommData))
	js.Global().Set("inspectCapsule", js.FuncOf(inspectCapsule))
	js.Global().Set("unlockCapsule", js.FuncOf(unlockCapsule))
	<-c
}
