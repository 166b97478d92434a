// internal/invitations/mailer/render.go
package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// InviteEmail is the data behind the initial invitation email.
type InviteEmail struct {
	SellerName   string
	ProjectTitle string
	Category     string
	Deadline     string
	Score        int
	Overlap      []string
	AcceptURL    string
	RejectURL    string
}

// OfferEmail is the data behind an admin offer email.
type OfferEmail struct {
	SellerName   string
	ProjectTitle string
	Price        string
	Note         string
	AcceptURL    string
	RejectURL    string
}

var funcs = map[string]interface{}{
	"dash": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "—"
		}
		return s
	},
	"list": func(items []string) string {
		if len(items) == 0 {
			return "—"
		}
		return strings.Join(items, ", ")
	},
}

const inviteText = `Hi {{.SellerName}},

You match a new project "{{.ProjectTitle}}" (score {{.Score}}).
Category: {{dash .Category}}
Overlap skills: {{list .Overlap}}
Deadline: {{dash .Deadline}}

Accept: {{.AcceptURL}}
Reject: {{.RejectURL}}

— IdeaMarket`

const inviteHTML = `<div style="font-family:system-ui,Segoe UI,Roboto,Arial;line-height:1.4;color:#0b1222">
  <p>Hi {{.SellerName}},</p>
  <p>You match a new project "<strong>{{.ProjectTitle}}</strong>" (score {{.Score}}).</p>
  <p>Category: {{dash .Category}}<br/>
     Overlap skills: {{list .Overlap}}<br/>
     Deadline: {{dash .Deadline}}</p>
  {{template "buttons" .}}
</div>`

const offerText = `Hi {{.SellerName}},

Admin has sent an offer for the project "{{.ProjectTitle}}".
Offered Price: {{dash .Price}}
Note: {{dash .Note}}

If you accept, click: {{.AcceptURL}}
If you reject, click: {{.RejectURL}}

— IdeaMarket`

const offerHTML = `<div style="font-family:system-ui,Segoe UI,Roboto,Arial;color:#0b1222;line-height:1.4">
  <p>Hi {{.SellerName}},</p>
  <p>Admin has sent an offer for the project "<strong>{{.ProjectTitle}}</strong>".</p>
  <p>Offered Price: <strong>{{dash .Price}}</strong><br/>
     Note: {{dash .Note}}</p>
  {{template "buttons" .}}
</div>`

const buttonsHTML = `{{define "buttons"}}<p>
    <a href="{{.AcceptURL}}" style="display:inline-block;padding:10px 14px;border-radius:8px;background:#4ade80;color:#081226;text-decoration:none;margin-right:8px;">Accept</a>
    <a href="{{.RejectURL}}" style="display:inline-block;padding:10px 14px;border-radius:8px;background:#fb7185;color:#081226;text-decoration:none;">Reject</a>
  </p>
  <hr/>
  <p style="color:#6b7280">If buttons don't work, use these links:<br/>
    Accept: <a href="{{.AcceptURL}}">{{.AcceptURL}}</a><br/>
    Reject: <a href="{{.RejectURL}}">{{.RejectURL}}</a>
  </p>
  <p>— IdeaMarket</p>{{end}}`

var (
	inviteTextTmpl = texttemplate.Must(texttemplate.New("invite").Funcs(funcs).Parse(inviteText))
	offerTextTmpl  = texttemplate.Must(texttemplate.New("offer").Funcs(funcs).Parse(offerText))
	inviteHTMLTmpl = htmltemplate.Must(htmltemplate.Must(htmltemplate.New("invite").Funcs(funcs).Parse(inviteHTML)).Parse(buttonsHTML))
	offerHTMLTmpl  = htmltemplate.Must(htmltemplate.Must(htmltemplate.New("offer").Funcs(funcs).Parse(offerHTML)).Parse(buttonsHTML))
)

// RenderInvite builds the subject and bodies of an invitation email.
func RenderInvite(d InviteEmail) (Message, error) {
	return render("[IdeaMarket] "+d.ProjectTitle+" — Invitation to propose", d, inviteTextTmpl, inviteHTMLTmpl)
}

// RenderOffer builds the subject and bodies of an offer email.
func RenderOffer(d OfferEmail) (Message, error) {
	return render(`[IdeaMarket] Offer for "`+d.ProjectTitle+`"`, d, offerTextTmpl, offerHTMLTmpl)
}

func render(subject string, data interface{}, text *texttemplate.Template, html *htmltemplate.Template) (Message, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, err
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, Text: tb.String(), HTML: hb.String()}, nil
}
