package redirect

import "net/url"

// ExternalOAuthEndpoint is the fixed Home Assistant OAuth completion endpoint
// that silently finishes a Home-Assistant-initiated flow.
const ExternalOAuthEndpoint = "https://my.home-assistant.io/redirect/oauth"

// Badge appearance for a successful code capture.
const (
	BadgeText  = "✓"
	BadgeColor = "#4CAF50"
)

// Source distinguishes the two browser entry points that can deliver a
// redirect. Some platforms fail to open an unregistered custom-scheme URI and
// report it as a navigation error instead of a navigation attempt; both must
// run the same recognizer/classifier/dispatch logic.
type Source int

const (
	// SourceNavigation is a navigation attempt observed before it commits.
	SourceNavigation Source = iota
	// SourceNavigationError is a navigation the browser reported as failed.
	SourceNavigationError
)

func (s Source) String() string {
	if s == SourceNavigationError {
		return "navigation_error"
	}
	return "navigation"
}

// Event is one navigation attempt or navigation error as observed by the
// browser. It is transient: it exists only for the duration of one handler
// invocation and is never retained.
type Event struct {
	URL       string
	TabID     string
	Source    Source
	ErrorText string // browser-supplied reason, error events only
}

// TargetKind names the two completion targets a recognized event can
// dispatch to.
type TargetKind int

const (
	// TargetHomeAssistant sends the tab to the external OAuth completion
	// endpoint.
	TargetHomeAssistant TargetKind = iota
	// TargetCapturePage sends the tab to the locally served staging page for
	// manual copy.
	TargetCapturePage
)

func (t TargetKind) String() string {
	if t == TargetHomeAssistant {
		return "home_assistant"
	}
	return "capture_page"
}

// Badge is a directive to set the visible completion indicator. Last write
// wins; it is a user-visible hint, not authoritative state.
type Badge struct {
	Text  string
	Color string
}

// Decision is the outcome of routing one recognized event: the completion
// target, the query parameters to attach to it, and an optional badge
// directive.
type Decision struct {
	Target TargetKind
	Query  url.Values
	Badge  *Badge
	Params Params
	FlowID string
}

// Decide routes a redirect event. The second return value is false when the
// URL is not a recognized redirect URI, in which case the event is ignored
// and no side effect of any kind should occur.
//
// Exactly one completion target is chosen per recognized event. A failed
// classification degrades to the capture page; it never aborts the dispatch.
func Decide(ev Event) (Decision, bool) {
	if !Recognized(ev.URL) {
		return Decision{}, false
	}

	params := ExtractParams(ev.URL)
	class := Classify(params.State)

	if class.HomeAssistant && params.Code != "" {
		return Decision{
			Target: TargetHomeAssistant,
			Query: url.Values{
				"code":  {params.Code},
				"state": {params.State},
			},
			Params: params,
			FlowID: class.FlowID,
		}, true
	}

	query := url.Values{"code": {params.Code}}
	if ev.Source == SourceNavigation {
		// The error path forwards only the code; error/error_description are
		// dropped there, reproducing the mobile-app handoff behavior.
		query.Set("state", params.State)
		query.Set("error", params.Error)
		query.Set("error_description", params.ErrorDescription)
	}

	d := Decision{
		Target: TargetCapturePage,
		Query:  query,
		Params: params,
	}
	if params.Code != "" {
		d.Badge = &Badge{Text: BadgeText, Color: BadgeColor}
	}
	return d, true
}

// TargetURL resolves the decision to a concrete URL. capturePageURL is the
// agent's locally served staging page; the Home Assistant endpoint is fixed.
func (d Decision) TargetURL(capturePageURL string) string {
	base := capturePageURL
	if d.Target == TargetHomeAssistant {
		base = ExternalOAuthEndpoint
	}
	return base + "?" + d.Query.Encode()
}
