package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/bikedash/internal/display"
	"github.com/sweeney/bikedash/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"speed": display.FormatSpeed,
	"onoff": status.OnOff,
	"secs":  func(d time.Duration) int64 { return int64(d.Seconds()) },
	"stamp": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Bike Dashboard</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.speed { font-size: 2em; font-weight: bold; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Bike Dashboard</h1>

<h2>Ride</h2>
<table>
<tr><th>Speed</th><td id="speed" class="speed">{{speed .Speed}} km/h</td></tr>
<tr><th>Brightness</th><td id="brightness">{{.Brightness}}%</td></tr>
<tr><th>Lights</th><td id="lights" class="{{if .LightsOn}}on{{else}}off{{end}}">{{onoff .LightsOn}}</td></tr>
</table>

<h2>Sleep</h2>
<table>
<tr><th>State</th><td id="phase">{{if .Inactivity.Phase}}{{.Inactivity.Phase}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Idle</th><td>{{secs .Inactivity.Idle}}s</td></tr>
<tr><th>Sleep in</th><td>{{secs .Inactivity.Remaining}}s</td></tr>
<tr><th>Sleeps</th><td id="sleeps">{{.Sleeps}}</td></tr>
{{if not .LastSleep.IsZero}}<tr><th>Last sleep</th><td>{{stamp .LastSleep}}</td></tr>{{end}}
{{if not .LastWake.IsZero}}<tr><th>Last wake</th><td>{{stamp .LastWake}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{stamp .StartTime}}</td></tr>
<tr><th>Wheel</th><td>r={{.Config.WheelRadius}}m, {{.Config.PulsesPerRev}} pulse(s)/rev</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Sleep timeout</th><td>{{.Config.SleepTimeoutMs}}ms</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template needs Uptime as a field, not a method.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
