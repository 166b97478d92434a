package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvite(t *testing.T) {
	msg, err := RenderInvite(InviteEmail{
		SellerName:   "Ann",
		ProjectTitle: "Go <API>",
		Category:     "web",
		Score:        3,
		Overlap:      []string{"go", "sql"},
		AcceptURL:    "http://localhost:4000/api/invite/i1/accept",
		RejectURL:    "http://localhost:4000/api/invite/i1/reject",
	})
	require.NoError(t, err)

	assert.Equal(t, "[IdeaMarket] Go <API> — Invitation to propose", msg.Subject)

	assert.Contains(t, msg.Text, `You match a new project "Go <API>" (score 3).`)
	assert.Contains(t, msg.Text, "Overlap skills: go, sql")
	assert.Contains(t, msg.Text, "Deadline: —")
	assert.Contains(t, msg.Text, "Accept: http://localhost:4000/api/invite/i1/accept")

	assert.Contains(t, msg.HTML, "<strong>Go &lt;API&gt;</strong>")
	assert.NotContains(t, msg.HTML, "<API>")
	assert.Contains(t, msg.HTML, `href="http://localhost:4000/api/invite/i1/reject"`)
	assert.Contains(t, msg.HTML, "If buttons don't work")
}

func TestRenderInvite_EmptyOverlap(t *testing.T) {
	msg, err := RenderInvite(InviteEmail{SellerName: "Bo", ProjectTitle: "X"})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Overlap skills: —")
	assert.Contains(t, msg.Text, "Category: —")
}

func TestRenderOffer(t *testing.T) {
	msg, err := RenderOffer(OfferEmail{
		SellerName:   "Ann",
		ProjectTitle: "Shop",
		Price:        "1500",
		AcceptURL:    "http://h/api/invite/i1/accept",
		RejectURL:    "http://h/api/invite/i1/reject",
	})
	require.NoError(t, err)

	assert.Equal(t, `[IdeaMarket] Offer for "Shop"`, msg.Subject)
	assert.Contains(t, msg.Text, "Offered Price: 1500")
	assert.Contains(t, msg.Text, "Note: —")
	assert.Contains(t, msg.Text, "If you accept, click: http://h/api/invite/i1/accept")
	assert.Contains(t, msg.HTML, "<strong>1500</strong>")
}

func TestRenderOffer_EscapesNote(t *testing.T) {
	msg, err := RenderOffer(OfferEmail{SellerName: "<script>", ProjectTitle: "p", Note: `"quoted" & more`})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.HTML, "&#34;quoted&#34; &amp; more")
	assert.Contains(t, msg.Text, `Note: "quoted" & more`)
}
