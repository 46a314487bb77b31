package api

import (
	"net/http"
)

// index serves a one-page controller: start and reset buttons plus a lane
// table fed by the status stream.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Drag race controller</title>
<style>
body { font-family: sans-serif; margin: 1em; }
button { font-size: 1.2em; padding: 0.5em 1em; margin-right: 0.5em; }
table { border-collapse: collapse; margin-top: 1em; }
td, th { border: 1px solid #999; padding: 0.3em 0.8em; text-align: right; }
</style>
</head>
<body>
<h1>Drag race controller</h1>
<button onclick="command('/api/start')">Start race</button>
<button onclick="command('/api/reset')">Reset</button>
<a href="/api/charts/reaction">Reaction chart</a>
<p id="phase">connecting</p>
<table>
<thead><tr><th>Lane</th><th>Staged</th><th>Reaction (ms)</th><th>Time (ms)</th><th>Place</th><th>Status</th></tr></thead>
<tbody id="lanes"></tbody>
</table>
<script>
function command(path) {
  fetch(path, {method: "POST"}).then(r => r.json()).then(j => {
    if (j.status === "error") alert(j.message);
  });
}
function cell(v) { return v === null || v === undefined ? "-" : v; }
new EventSource("/api/events").addEventListener("status", (e) => {
  const s = JSON.parse(e.data);
  document.getElementById("phase").textContent = s.phase + (s.current_stage ? " (" + s.current_stage + ")" : "");
  document.getElementById("lanes").innerHTML = s.lanes.map(l =>
    "<tr><td>" + l.lane_id + "</td><td>" + (l.staged ? "staged" : l.prestaged ? "pre" : "") +
    "</td><td>" + cell(l.reaction_time) + "</td><td>" + cell(l.finish_time) +
    "</td><td>" + cell(l.place) + "</td><td>" + (l.false_start ? "FALSE START" : "") + "</td></tr>").join("");
});
</script>
</body>
</html>
`
