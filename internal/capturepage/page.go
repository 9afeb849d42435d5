// Package capturepage serves the local staging page a captured authorization
// response is routed to when it cannot be positively identified as a Home
// Assistant flow. The page shows the raw values for manual copy-paste and
// live-updates over the capture event stream.
package capturepage

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dgnsrekt/mazda_agent/internal/indicator"
)

type pageData struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Badge            indicator.State
	EventsPath       string
}

// Handler renders the capture page from its query parameters. Missing
// parameters render as empty fields; the page is always shown so the user can
// see whatever was extracted.
func Handler(badge *indicator.Indicator, eventsPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data := pageData{
			Code:             q.Get("code"),
			State:            q.Get("state"),
			Error:            q.Get("error"),
			ErrorDescription: q.Get("error_description"),
			Badge:            badge.Get(),
			EventsPath:       eventsPath,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTmpl.Execute(w, data); err != nil {
			slog.Debug("capture page render failed", "error", err)
		}
	}
}

var pageTmpl = template.Must(template.New("capture").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Mazda OAuth Capture</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 680px; margin: 3em auto; color: #222; }
h1 { font-size: 1.3em; }
.badge { display: inline-block; padding: 2px 10px; border-radius: 10px; color: #fff; background: {{if .Badge.Set}}{{.Badge.Color}}{{else}}#999{{end}}; }
label { display: block; margin-top: 1em; font-weight: 600; font-size: 0.85em; color: #555; }
input, textarea { width: 100%; font-family: monospace; font-size: 0.9em; padding: 6px; border: 1px solid #ccc; border-radius: 4px; box-sizing: border-box; }
.error { color: #b00020; }
.hint { margin-top: 2em; font-size: 0.8em; color: #777; }
</style>
</head>
<body>
<h1>Mazda OAuth capture {{if .Badge.Set}}<span class="badge">{{.Badge.Text}}</span>{{end}}</h1>
{{if .Error}}<p class="error">The authorization server returned an error: <strong>{{.Error}}</strong>{{if .ErrorDescription}}: {{.ErrorDescription}}{{end}}</p>{{end}}
<label for="code">Authorization code</label>
<input id="code" value="{{.Code}}" readonly onclick="this.select()">
<label for="state">State</label>
<textarea id="state" rows="3" readonly onclick="this.select()">{{.State}}</textarea>
<p class="hint">This flow was not recognized as Home-Assistant-initiated, so the
code was not forwarded anywhere. Copy it into whatever started the login. The
page updates automatically if another redirect is captured.</p>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var sock = new WebSocket(proto + location.host + {{.EventsPath}});
  sock.onmessage = function (msg) {
    try {
      var evt = JSON.parse(msg.data);
      if (evt.target !== "capture_page") return;
      var p = new URLSearchParams();
      p.set("code", evt.code || "");
      p.set("state", evt.state || "");
      if (evt.error) p.set("error", evt.error);
      if (evt.error_description) p.set("error_description", evt.error_description);
      location.search = "?" + p.toString();
    } catch (e) { /* ignore malformed frames */ }
  };
})();
</script>
</body>
</html>
`))
