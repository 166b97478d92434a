package api

import (
	"html/template"
	"net/http"

	"ideamarket/internal/models"
)

type notifyResponse struct {
	OK      bool                 `json:"ok"`
	Invites []*models.Invitation `json:"invites"`
	Sent    int                  `json:"sent"`
	Draft   bool                 `json:"draft"`
}

type inviteResponse struct {
	OK     bool               `json:"ok"`
	Invite *models.Invitation `json:"invite"`
}

type listResponse struct {
	Invites []*models.Invitation `json:"invites"`
}

func (s *Server) handleNotifySellers(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeBody(r, notifySchema, &req); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}

	res, err := s.invites.CreateInvites(r.Context(), req.Project, req.RankedSellers, req.Draft)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notifyResponse{
		OK:      true,
		Invites: nonNil(res.Invites),
		Sent:    res.Sent,
		Draft:   res.Draft,
	})
}

func (s *Server) handleAcceptPage(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invites.Accept(r.Context(), r.PathValue("id"))
	s.confirm(w, r, inv, err, acceptedPage)
}

func (s *Server) handleRejectPage(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invites.Reject(r.Context(), r.PathValue("id"))
	s.confirm(w, r, inv, err, rejectedPage)
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request, inv *models.Invitation, err error, page *template.Template) {
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	if err := writePage(w, page, confirmationFor(inv)); err != nil {
		s.errors.HandleHTTPError(w, r, err)
	}
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invites.Accept(r.Context(), r.PathValue("id"))
	s.respondInvite(w, r, inv, err)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invites.Reject(r.Context(), r.PathValue("id"))
	s.respondInvite(w, r, inv, err)
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := decodeBody(r, offerSchema, &req); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	inv, err := s.invites.Offer(r.Context(), r.PathValue("id"), req.Price, req.Note, req.SendEmail)
	s.respondInvite(w, r, inv, err)
}

func (s *Server) respondInvite(w http.ResponseWriter, r *http.Request, inv *models.Invitation, err error) {
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inviteResponse{OK: true, Invite: inv})
}

func (s *Server) handleProjectInvites(w http.ResponseWriter, r *http.Request) {
	list, err := s.invites.ByProject(r.Context(), r.PathValue("id"))
	s.respondList(w, r, list, err)
}

func (s *Server) handleSellerInvites(w http.ResponseWriter, r *http.Request) {
	list, err := s.invites.BySeller(r.Context(), r.PathValue("sellerId"))
	s.respondList(w, r, list, err)
}

func (s *Server) respondList(w http.ResponseWriter, r *http.Request, list []*models.Invitation, err error) {
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Invites: nonNil(list)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "msg": "server up"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := writePage(w, indexPage, struct{ BaseURL string }{s.opts.BaseURL}); err != nil {
		s.errors.HandleHTTPError(w, r, err)
	}
}

func nonNil(list []*models.Invitation) []*models.Invitation {
	if list == nil {
		return []*models.Invitation{}
	}
	return list
}
