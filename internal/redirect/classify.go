package redirect

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Classification is the judgment over a state parameter: either the
// authorization attempt was initiated by a Home Assistant OAuth flow
// (in which case FlowID carries the flow identifier) or it was not.
type Classification struct {
	HomeAssistant bool
	FlowID        string
}

// Classify decides whether a captured code belongs to a Home-Assistant-
// initiated flow by inspecting the opaque state value. Home Assistant encodes
// its state as a three-segment signed token whose payload carries a flow_id
// field; anything else is treated as a manual capture.
//
// The token's signature is deliberately NOT verified: this agent has no
// shared secret with the issuer, so the check is a shape heuristic, not
// authentication. Any attacker-crafted token of the right shape can trigger
// the Home Assistant redirect path; the values are only ever handed to the
// fixed completion endpoint, which performs its own validation.
//
// Classify is total: malformed input of any kind yields a negative
// classification, never an error.
func Classify(state string) Classification {
	if state == "" {
		return Classification{}
	}

	segments := strings.Split(state, ".")
	if len(segments) != 3 {
		return Classification{}
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(segments[1], "="))
	if err != nil {
		return Classification{}
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Classification{}
	}

	flowID, ok := claims["flow_id"].(string)
	if !ok {
		return Classification{}
	}
	return Classification{HomeAssistant: true, FlowID: flowID}
}
