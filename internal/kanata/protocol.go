// Package kanata implements the resilient TCP client that drives a running
// Kanata process over its newline-delimited JSON wire protocol: connect
// with backoff, flush coalesced pending changes once connected, surface
// incoming LayerChange notifications, and perform a synchronous
// shutdown-reset on the existing connection without reconnecting.
package kanata

import (
	"encoding/json"
	"fmt"

	"github.com/kanata-switcher/kanata-focusd/internal/reducer"
	"github.com/kanata-switcher/kanata-focusd/internal/rules"
)

type changeLayerBody struct {
	New string `json:"new"`
}

type outChangeLayer struct {
	ChangeLayer changeLayerBody `json:"ChangeLayer"`
}

type actOnFakeKeyBody struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

type outActOnFakeKey struct {
	ActOnFakeKey actOnFakeKeyBody `json:"ActOnFakeKey"`
}

// encodeLine renders a single reducer.WireAction as one newline-delimited
// JSON line, bit-exact with the Kanata wire protocol.
func encodeLine(a reducer.WireAction) ([]byte, error) {
	var v any
	switch a.Kind {
	case reducer.WireChangeLayer:
		v = outChangeLayer{ChangeLayer: changeLayerBody{New: a.Layer}}
	case reducer.WireVkAction:
		v = outActOnFakeKey{ActOnFakeKey: actOnFakeKeyBody{Name: a.Name, Action: a.Action.String()}}
	default:
		return nil, fmt.Errorf("kanata: unknown wire action kind %d", a.Kind)
	}
	line, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// incoming is the envelope shape for the subset of incoming messages the
// core cares about. Every other incoming object is ignored by construction:
// unrecognised fields simply leave LayerChange nil.
type incoming struct {
	LayerChange *changeLayerBody `json:"LayerChange"`
}

// parseLine decodes one incoming line. A nil, nil return means the line
// parsed as JSON but carried no message this client understands.
func parseLine(line []byte) (*changeLayerBody, error) {
	var msg incoming
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, err
	}
	return msg.LayerChange, nil
}

// releaseWireAction builds the WireAction that releases a managed VK,
// mirroring reducer's own unexported constructor since the shutdown path
// needs to build actions outside of a Reduce call.
func releaseWireAction(name string) reducer.WireAction {
	return reducer.WireAction{Kind: reducer.WireVkAction, Name: name, Action: rules.VkRelease}
}

func changeLayerWireAction(layer string) reducer.WireAction {
	return reducer.WireAction{Kind: reducer.WireChangeLayer, Layer: layer}
}
