package notification

import (
	"bytes"
	"crypto/md5"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"strconv"
	texttemplate "text/template"
	"time"

	"github.com/mikeyg42/plantwatch/internal/report"
)

// AlertSubject is the subject line of every disease alert.
const AlertSubject = "Plant Disease Alert"

// severePercent colors a detection red instead of amber.
const severePercent = 85.0

// AlertData feeds the alert templates.
type AlertData struct {
	SystemName string
	Time       string
	Timestamp  time.Time
	AlertID    string
	Checked    int
	Items      []AlertItem
}

// AlertItem is one diseased camera.
type AlertItem struct {
	Camera    int
	Farmer    string
	PlantName string
	PlantCode string
	Bed       string
	Diseases  []AlertDisease
}

// AlertDisease is one label over the threshold.
type AlertDisease struct {
	Label   string
	Percent string
	Severe  bool
}

// NewAlertData collects the diseased results of a batch.
func NewAlertData(batch []report.Result, at time.Time, systemName string) *AlertData {
	data := &AlertData{
		SystemName: systemName,
		Time:       at.Format("Monday, January 2, 2006 at 3:04 PM"),
		Timestamp:  at,
		AlertID:    generateAlertID(at),
		Checked:    len(batch),
	}

	for _, r := range Diseased(batch) {
		item := AlertItem{Camera: r.Camera}
		if r.Record != nil {
			item.Farmer = r.Record.Farmer
			item.PlantName = r.Record.PlantName
			item.PlantCode = r.Record.PlantCode
			if r.Record.BedNumber != nil {
				item.Bed = strconv.Itoa(*r.Record.BedNumber)
			}
		}
		for _, d := range r.DiseaseTypes {
			pct := d.Score * 100
			item.Diseases = append(item.Diseases, AlertDisease{
				Label:   d.Label,
				Percent: fmt.Sprintf("%.2f%%", pct),
				Severe:  pct > severePercent,
			})
		}
		data.Items = append(data.Items, item)
	}
	return data
}

var (
	alertHTML = htmltemplate.Must(htmltemplate.New("alert-html").Parse(diseaseAlertHTMLTemplate))
	alertText = texttemplate.Must(texttemplate.New("alert-text").Parse(diseaseAlertTextTemplate))
)

// RenderAlert renders the HTML and text bodies.
func RenderAlert(data *AlertData) (htmlBody, textBody string, err error) {
	var htmlBuf bytes.Buffer
	if err := alertHTML.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute HTML template: %w", err)
	}

	var textBuf bytes.Buffer
	if err := alertText.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute text template: %w", err)
	}

	return htmlBuf.String(), textBuf.String(), nil
}

// CreateDisplayName creates a properly encoded display name for email headers
func CreateDisplayName(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), address)
}

func generateAlertID(at time.Time) string {
	hash := md5.Sum([]byte(at.String()))
	return fmt.Sprintf("%s-%x", at.Format("20060102-150405"), hash[:4])
}

const diseaseAlertHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.SystemName}} - Plant Disease Alert</title>
</head>
<body style="margin:0; background:#f5f7fa;">
<div style="font-family:'Segoe UI', Arial, sans-serif; max-width:600px; margin:0 auto;">
  <div style="background:#ffffff; border-radius:12px; box-shadow:0 2px 8px rgba(0,0,0,0.08); overflow:hidden;">
    <div style="background:linear-gradient(135deg, #2196f3, #1976d2); padding:15px; text-align:center;">
      <h2 style="color:white; margin:0; font-size:20px;">Plant Disease Detection Alert</h2>
      <p style="color:rgba(255,255,255,0.9); margin:5px 0 0 0; font-size:13px;">{{.Time}} &middot; {{len .Items}} of {{.Checked}} cameras flagged</p>
    </div>
    <div style="padding:10px;">
    {{range .Items}}
      <div style="background:#f8f9fa; border-radius:8px; padding:15px; margin-bottom:15px; border:1px solid #e9ecef; text-align:center;">
        <div style="margin-bottom:12px;">
          <span style="background:#1976d2; color:white; padding:6px 12px; border-radius:50px; font-size:13px;">Camera {{.Camera}}</span>
          {{if .Bed}}<span style="background:#5e35b1; color:white; padding:6px 12px; border-radius:50px; font-size:13px;">Bed #{{.Bed}}</span>{{end}}
        </div>
        <div style="background:white; padding:12px; border-radius:8px; margin-bottom:12px;">
          <h3 style="color:#1a237e; margin:0 0 8px 0; font-size:16px;">{{if .Farmer}}{{.Farmer}}{{else}}Unknown Farmer{{end}}</h3>
          <div style="color:#424242; font-size:14px;">
            <strong>{{if .PlantName}}{{.PlantName}}{{else}}Unknown Plant{{end}}</strong>
            <span style="background:#e3f2fd; padding:3px 10px; border-radius:50px; font-size:12px; color:#1976d2;">{{if .PlantCode}}{{.PlantCode}}{{else}}No Code{{end}}</span>
          </div>
        </div>
        <div style="background:white; border-radius:8px; padding:12px;">
          <h4 style="color:#c62828; margin:0 0 12px 0; font-size:15px;">Detected Diseases</h4>
          {{range .Diseases}}
          <div style="padding:8px; background:{{if .Severe}}#fff5f5{{else}}#fff8e1{{end}}; border-radius:6px; margin-bottom:6px;">
            <span style="text-transform:capitalize; color:#424242; font-size:13px;">{{.Label}}</span>
            <span style="background:{{if .Severe}}#c62828{{else}}#ef6c00{{end}}; color:white; padding:4px 10px; border-radius:50px; font-size:12px;">{{.Percent}}</span>
          </div>
          {{else}}
          <p style="color:#666; font-style:italic; margin:0; font-size:13px;">No diseases detected</p>
          {{end}}
        </div>
      </div>
    {{end}}
    </div>
    <div style="padding:12px; text-align:center; border-top:1px solid #eee; background:#fafafa;">
      <p style="color:#666; font-size:12px; margin:0; line-height:1.4;">
        This is an automated alert from {{.SystemName}}.<br>
        Please review the findings and take appropriate action if necessary.<br>
        Alert ID: {{.AlertID}}
      </p>
    </div>
  </div>
</div>
</body>
</html>`

const diseaseAlertTextTemplate = `PLANT DISEASE DETECTION ALERT

{{.Time}}
{{len .Items}} of {{.Checked}} cameras flagged.
{{range .Items}}
Camera {{.Camera}}{{if .Bed}} / Bed #{{.Bed}}{{end}}
  Farmer: {{if .Farmer}}{{.Farmer}}{{else}}Unknown Farmer{{end}}
  Plant:  {{if .PlantName}}{{.PlantName}}{{else}}Unknown Plant{{end}} ({{if .PlantCode}}{{.PlantCode}}{{else}}No Code{{end}})
{{range .Diseases}}  - {{.Label}}: {{.Percent}}
{{end}}{{end}}
This is an automated alert from {{.SystemName}}.
Alert ID: {{.AlertID}}
`
