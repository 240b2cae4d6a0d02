// Package handlers contains the HTTP handlers for the /v1 surface.
package handlers

import (
	"recalld/pkg/llm"
	"recalld/pkg/turn"
)

var (
	controller *turn.Controller
	model      llm.Client
)

// Configure injects the shared turn controller and model client. Must be
// called once at startup before the router serves traffic.
func Configure(ctrl *turn.Controller, client llm.Client) {
	controller = ctrl
	model = client
}
