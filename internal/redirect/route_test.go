package redirect

import (
	"testing"
)

const (
	iosRedirect     = "msauth.com.mazdausa.mazdaiphone://auth"
	androidRedirect = "msauth://com.interrait.mymazda"
)

func TestRecognized(t *testing.T) {
	t.Run("recognized_prefixes", func(t *testing.T) {
		for _, u := range []string{
			iosRedirect,
			iosRedirect + "?code=abc",
			androidRedirect,
			androidRedirect + "?code=abc&state=def",
		} {
			if !Recognized(u) {
				t.Fatalf("expected %q to be recognized", u)
			}
		}
	})

	t.Run("unrecognized", func(t *testing.T) {
		for _, u := range []string{
			"",
			"https://example.com/",
			"https://my.home-assistant.io/redirect/oauth?code=x",
			"MSAUTH://com.interrait.mymazda", // case-sensitive match
			"msauth.com.mazdausa.mazdaiphon://auth",
			"intent://com.interrait.mymazda",
			"not a url at all",
		} {
			if Recognized(u) {
				t.Fatalf("expected %q to be ignored", u)
			}
		}
	})
}

func TestExtractParams(t *testing.T) {
	t.Run("all_parameters", func(t *testing.T) {
		p := ExtractParams(iosRedirect + "?code=ABC123&state=xyz&error=access_denied&error_description=User%20cancelled")
		if p.Code != "ABC123" || p.State != "xyz" || p.Error != "access_denied" || p.ErrorDescription != "User cancelled" {
			t.Fatalf("unexpected params: %+v", p)
		}
	})

	t.Run("missing_parameters_default_empty", func(t *testing.T) {
		p := ExtractParams(androidRedirect + "?code=only")
		if p.Code != "only" {
			t.Fatalf("expected code %q, got %q", "only", p.Code)
		}
		if p.State != "" || p.Error != "" || p.ErrorDescription != "" {
			t.Fatalf("expected empty defaults, got %+v", p)
		}
	})

	t.Run("no_query", func(t *testing.T) {
		if p := ExtractParams(iosRedirect); p != (Params{}) {
			t.Fatalf("expected empty params, got %+v", p)
		}
	})

	t.Run("malformed_url_degrades", func(t *testing.T) {
		if p := ExtractParams("msauth://com.interrait.mymazda?%zz=%%"); p != (Params{}) {
			t.Fatalf("expected empty params for malformed url, got %+v", p)
		}
	})
}

func TestDecide(t *testing.T) {
	t.Run("unrecognized_url_ignored", func(t *testing.T) {
		_, ok := Decide(Event{URL: "https://example.com/?code=abc", TabID: "1"})
		if ok {
			t.Fatalf("expected event to be ignored")
		}
	})

	t.Run("home_assistant_flow_with_code", func(t *testing.T) {
		state := haState(t, `{"flow_id":"xyz"}`)
		d, ok := Decide(Event{URL: iosRedirect + "?code=ABC123&state=" + state, TabID: "1"})
		if !ok {
			t.Fatalf("expected a decision")
		}
		if d.Target != TargetHomeAssistant {
			t.Fatalf("expected home assistant target, got %v", d.Target)
		}
		if d.FlowID != "xyz" {
			t.Fatalf("expected flow id xyz, got %q", d.FlowID)
		}
		if d.Badge != nil {
			t.Fatalf("expected no badge on the home assistant path")
		}
		want := ExternalOAuthEndpoint + "?code=ABC123&state=" + state
		if got := d.TargetURL("http://127.0.0.1:8699/capture"); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	})

	t.Run("home_assistant_state_without_code_goes_local", func(t *testing.T) {
		state := haState(t, `{"flow_id":"xyz"}`)
		d, ok := Decide(Event{URL: iosRedirect + "?state=" + state})
		if !ok || d.Target != TargetCapturePage {
			t.Fatalf("expected capture page target, got %+v ok=%v", d, ok)
		}
		if d.Badge != nil {
			t.Fatalf("expected no badge without a code")
		}
	})

	t.Run("manual_capture_sets_badge", func(t *testing.T) {
		d, ok := Decide(Event{URL: androidRedirect + "?code=ABC123"})
		if !ok || d.Target != TargetCapturePage {
			t.Fatalf("expected capture page target, got %+v ok=%v", d, ok)
		}
		if d.Badge == nil || d.Badge.Text != "✓" || d.Badge.Color != "#4CAF50" {
			t.Fatalf("expected green checkmark badge, got %+v", d.Badge)
		}
		got := d.TargetURL("http://127.0.0.1:8699/capture")
		want := "http://127.0.0.1:8699/capture?code=ABC123&error=&error_description=&state="
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	})

	t.Run("oauth_error_forwarded_without_badge", func(t *testing.T) {
		d, ok := Decide(Event{URL: iosRedirect + "?error=access_denied&error_description=User%20cancelled"})
		if !ok || d.Target != TargetCapturePage {
			t.Fatalf("expected capture page target")
		}
		if d.Badge != nil {
			t.Fatalf("expected no badge when no code was captured")
		}
		if d.Query.Get("error") != "access_denied" || d.Query.Get("error_description") != "User cancelled" {
			t.Fatalf("expected error values forwarded, got %v", d.Query)
		}
	})

	t.Run("error_path_forwards_only_code", func(t *testing.T) {
		d, ok := Decide(Event{
			URL:       androidRedirect + "?code=ABC123&error=access_denied&error_description=User%20cancelled",
			Source:    SourceNavigationError,
			ErrorText: "net::ERR_UNKNOWN_URL_SCHEME",
		})
		if !ok || d.Target != TargetCapturePage {
			t.Fatalf("expected capture page target")
		}
		if d.Badge == nil {
			t.Fatalf("expected badge: a code was captured")
		}
		if _, present := d.Query["error"]; present {
			t.Fatalf("error must not be forwarded on the navigation-error path")
		}
		if _, present := d.Query["error_description"]; present {
			t.Fatalf("error_description must not be forwarded on the navigation-error path")
		}
		if _, present := d.Query["state"]; present {
			t.Fatalf("state must not be forwarded on the navigation-error path")
		}
		if d.Query.Get("code") != "ABC123" {
			t.Fatalf("expected code forwarded, got %v", d.Query)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		ev := Event{URL: iosRedirect + "?code=ABC123", TabID: "7"}
		first, ok := Decide(ev)
		if !ok {
			t.Fatalf("expected a decision")
		}
		for range 3 {
			again, ok := Decide(ev)
			if !ok {
				t.Fatalf("expected a decision on redelivery")
			}
			if again.TargetURL("x") != first.TargetURL("x") {
				t.Fatalf("decision changed across redeliveries")
			}
			if (again.Badge == nil) != (first.Badge == nil) {
				t.Fatalf("badge directive changed across redeliveries")
			}
		}
	})
}
