package api

import (
	"bytes"
	"html/template"
	"net/http"

	"ideamarket/internal/models"
)

const pageLayout = `<html>
  <body style="font-family: ui-sans-serif; padding: 24px;">
    {{template "content" .}}
  </body>
</html>
`

const acceptedContent = `{{define "content"}}<h2>Thanks, {{.SellerName}}!</h2>
    <p>Your acceptance for project <b>{{.Project}}</b> has been recorded.</p>
    <p>You can reply to the email to discuss next steps.</p>{{end}}`

const rejectedContent = `{{define "content"}}<h2>Thanks, {{.SellerName}}.</h2>
    <p>Your rejection for project <b>{{.Project}}</b> has been recorded.</p>
    <p>Thanks for the quick response, we'll notify the admin.</p>{{end}}`

const indexContent = `{{define "content"}}<h2>IdeaMarket Notifier</h2>
    <p>Notifier running at <b>{{.BaseURL}}</b></p>
    <ul>
      <li><a href="/api/health">/api/health</a> health check</li>
      <li><a href="/api/test-email">/api/test-email</a> test endpoint</li>
      <li><a href="/metrics">/metrics</a> Prometheus metrics</li>
    </ul>
    <p>Use the <code>/api/</code> routes for invites, offers, accept/reject.</p>{{end}}`

var (
	acceptedPage = template.Must(template.Must(template.New("accepted").Parse(pageLayout)).Parse(acceptedContent))
	rejectedPage = template.Must(template.Must(template.New("rejected").Parse(pageLayout)).Parse(rejectedContent))
	indexPage    = template.Must(template.Must(template.New("index").Parse(pageLayout)).Parse(indexContent))
)

type confirmationData struct {
	SellerName string
	Project    string
}

func confirmationFor(inv *models.Invitation) confirmationData {
	project := inv.ProjectTitle
	if project == "" {
		project = inv.ProjectID
	}
	return confirmationData{SellerName: inv.SellerName, Project: project}
}

func writePage(w http.ResponseWriter, tmpl *template.Template, data interface{}) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
