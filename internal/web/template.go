package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/phone-diagnostics/internal/logic"
	"github.com/sweeney/phone-diagnostics/internal/report"
	"github.com/sweeney/phone-diagnostics/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"statusClass": func(s logic.Status) string {
		switch s {
		case logic.StatusPassed:
			return "passed"
		case logic.StatusFailed, logic.StatusError:
			return "failed"
		case logic.StatusUnavailable:
			return "unavailable"
		}
		return "pending"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Phone Diagnostics</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.passed { color: green; font-weight: bold; }
.failed { color: red; font-weight: bold; }
.unavailable { color: orange; }
.pending { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.prompt { background: #ffe; padding: 6px 8px; border: 1px solid #cc9; }
</style>
</head>
<body>
<h1>Phone Diagnostics</h1>

<h2>Progress</h2>
<table>
<tr><th>Step</th><td id="step">{{if .Complete}}Done{{else}}{{.Step}}{{end}}</td></tr>
<tr><th>Score</th><td>{{.Summary.Passed}} / {{len .Tests}}</td></tr>
<tr><th>Session</th><td>{{.SessionID}}</td></tr>
</table>
{{if .LastMessage}}<p class="prompt">{{.LastMessage}}</p>{{end}}

<h2>Tests</h2>
<table>
{{range .Tests}}<tr><th>{{.Name}}</th><td id="test-{{.Name}}" class="{{statusClass .Status}}">{{.Status}}</td></tr>
{{end}}</table>

<h2>Device</h2>
<table>
<tr><th>Brand</th><td>{{.Hardware.Brand}}</td></tr>
<tr><th>Model</th><td>{{.Hardware.Model}}</td></tr>
<tr><th>RAM</th><td>{{.Hardware.RAMGB}} GB</td></tr>
<tr><th>OS</th><td>{{.Hardware.OSVersion}}</td></tr>
<tr><th>Physical</th><td>{{if .Hardware.IsPhysicalDevice}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Grid</th><td>{{.Config.GridRows}} x {{.Config.GridCols}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/export.json">Export</a></p>
<form method="post" action="/reset"><button type="submit">Restart diagnostics</button></form>
</body>
</html>
`

type testRow struct {
	Name   logic.TestName
	Status logic.Status
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	rows := make([]testRow, 0, len(logic.AllTests))
	for _, name := range logic.AllTests {
		st, ok := snap.Results[name]
		if !ok {
			st = logic.StatusPending
		}
		rows = append(rows, testRow{Name: name, Status: st})
	}
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Tests   []testRow
		Summary report.Summary
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Tests:    rows,
		Summary:  report.Summarize(snap.Results),
	}
	return indexTmpl.Execute(w, data)
}
