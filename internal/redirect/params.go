package redirect

import "net/url"

// Params holds the OAuth2 authorization response parameters extracted from a
// recognized redirect URI. Every field is optional; absent parameters are
// empty strings.
type Params struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ExtractParams parses the query parameters of a recognized redirect URI.
// Parsing failures degrade to empty params rather than erroring: the capture
// page is still shown so the user can see whatever was extracted.
func ExtractParams(rawURL string) Params {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Params{}
	}
	q := u.Query()
	return Params{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}
