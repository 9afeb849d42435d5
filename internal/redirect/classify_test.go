package redirect

import (
	"encoding/base64"
	"testing"
)

func haState(t *testing.T, payload string) string {
	t.Helper()
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".c2ln"
}

func TestClassify(t *testing.T) {
	t.Run("home_assistant_token", func(t *testing.T) {
		c := Classify(haState(t, `{"flow_id":"xyz"}`))
		if !c.HomeAssistant {
			t.Fatalf("expected HomeAssistant classification")
		}
		if c.FlowID != "xyz" {
			t.Fatalf("expected flow id %q, got %q", "xyz", c.FlowID)
		}
	})

	t.Run("padded_payload_segment", func(t *testing.T) {
		padded := "h." + base64.URLEncoding.EncodeToString([]byte(`{"flow_id":"abc"}`)) + ".s"
		c := Classify(padded)
		if !c.HomeAssistant || c.FlowID != "abc" {
			t.Fatalf("expected HomeAssistant/abc, got %+v", c)
		}
	})

	t.Run("extra_claims_ignored", func(t *testing.T) {
		c := Classify(haState(t, `{"iss":"home-assistant","flow_id":"f1","exp":123}`))
		if !c.HomeAssistant || c.FlowID != "f1" {
			t.Fatalf("expected HomeAssistant/f1, got %+v", c)
		}
	})

	t.Run("negative_shapes", func(t *testing.T) {
		cases := map[string]string{
			"empty":              "",
			"plain_string":       "some-random-state",
			"two_segments":       "a.b",
			"four_segments":      "a.b.c.d",
			"bad_base64":         "a.!!!.c",
			"non_json_payload":   "a." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c",
			"json_array_payload": "a." + base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + ".c",
			"missing_flow_id":    haState(t, `{"iss":"home-assistant"}`),
			"numeric_flow_id":    haState(t, `{"flow_id":42}`),
			"null_flow_id":       haState(t, `{"flow_id":null}`),
		}
		for name, state := range cases {
			t.Run(name, func(t *testing.T) {
				c := Classify(state)
				if c.HomeAssistant {
					t.Fatalf("expected NotHomeAssistantFlow for %q", state)
				}
				if c.FlowID != "" {
					t.Fatalf("expected empty flow id, got %q", c.FlowID)
				}
			})
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		state := haState(t, `{"flow_id":"again"}`)
		first := Classify(state)
		for range 5 {
			if Classify(state) != first {
				t.Fatalf("classification not deterministic")
			}
		}
	})
}
