package setlist

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"setlist-service/internal/position"
)

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleCreateSetlist(w http.ResponseWriter, r *http.Request) {
	var body SetlistInput
	if !decodeBody(w, r, &body) {
		return
	}
	sl, err := s.svc.CreateSetlist(r.Context(), CredentialsFromRequest(r), body)
	if err != nil {
		writeServiceError(w, s.log, "create setlist", err)
		return
	}
	writeJSON(w, http.StatusCreated, sl)
}

func (s *Server) handleGetSetlist(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.GetSetlist(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, s.log, "get setlist", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDuplicateSetlist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name *string `json:"name"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	sl, err := s.svc.DuplicateSetlist(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), body.Name)
	if err != nil {
		writeServiceError(w, s.log, "duplicate setlist", err)
		return
	}
	writeJSON(w, http.StatusCreated, sl)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var body ItemInput
	if !decodeBody(w, r, &body) {
		return
	}
	it, err := s.svc.AddItem(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), body)
	if err != nil {
		writeServiceError(w, s.log, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var body ItemPatch
	if !decodeBody(w, r, &body) {
		return
	}
	it, err := s.svc.UpdateItem(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), body)
	if err != nil {
		writeServiceError(w, s.log, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	err := s.svc.RemoveItem(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"))
	if err != nil {
		writeServiceError(w, s.log, "remove item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderBody struct {
	Moves []position.Move `json:"moves"`
}

func (s *Server) handleReorderItems(w http.ResponseWriter, r *http.Request) {
	var body reorderBody
	if !decodeBody(w, r, &body) {
		return
	}
	items, err := s.svc.ReorderItems(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), body.Moves)
	if err != nil {
		writeServiceError(w, s.log, "reorder items", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddSection(w http.ResponseWriter, r *http.Request) {
	var body SectionInput
	if !decodeBody(w, r, &body) {
		return
	}
	sec, err := s.svc.AddSection(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), body)
	if err != nil {
		writeServiceError(w, s.log, "add section", err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	var body SectionPatch
	if !decodeBody(w, r, &body) {
		return
	}
	sec, err := s.svc.UpdateSection(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"), body)
	if err != nil {
		writeServiceError(w, s.log, "update section", err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	err := s.svc.DeleteSection(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"))
	if err != nil {
		writeServiceError(w, s.log, "delete section", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderSections(w http.ResponseWriter, r *http.Request) {
	var body reorderBody
	if !decodeBody(w, r, &body) {
		return
	}
	sections, err := s.svc.ReorderSections(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), body.Moves)
	if err != nil {
		writeServiceError(w, s.log, "reorder sections", err)
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	shares, err := s.svc.ListShares(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, s.log, "list shares", err)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var body ShareInput
	if !decodeBody(w, r, &body) {
		return
	}
	sh, err := s.svc.CreateShare(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), body)
	if err != nil {
		writeServiceError(w, s.log, "create share", err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

func (s *Server) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	err := s.svc.RevokeShare(r.Context(), CredentialsFromRequest(r), chi.URLParam(r, "id"), chi.URLParam(r, "shareId"))
	if err != nil {
		writeServiceError(w, s.log, "revoke share", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
