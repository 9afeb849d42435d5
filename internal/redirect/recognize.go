// Package redirect implements the OAuth redirect interception core: deciding
// whether a navigated URL is a Mazda Connected Services OAuth redirect,
// extracting the authorization response parameters from it, classifying the
// state token, and choosing where the originating tab should be sent next.
//
// Everything in this package is a pure function of its inputs. Talking to the
// browser (event subscription, tab navigation, badge updates) is the
// interceptor package's job.
package redirect

import "strings"

// redirectPrefixes are the custom-scheme redirect URIs registered by the
// MyMazda mobile apps (iOS first, then Android). Matching is an exact,
// case-sensitive prefix check with no normalization or decoding: these URLs
// come from unrestricted web navigation and must not be massaged before the
// match.
var redirectPrefixes = []string{
	"msauth.com.mazdausa.mazdaiphone://auth",
	"msauth://com.interrait.mymazda",
}

// Recognized reports whether rawURL is one of the Mazda OAuth redirect URIs
// this agent handles.
func Recognized(rawURL string) bool {
	for _, prefix := range redirectPrefixes {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}
