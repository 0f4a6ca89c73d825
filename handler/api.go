package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pitchcraft/internal/auth"
	"pitchcraft/internal/domain"
	"pitchcraft/internal/usecase"
)

type generateRequest struct {
	Text      string `json:"text"`
	Idea      string `json:"idea"`
	Tone      string `json:"tone"`
	SessionID string `json:"sessionId"`
}

type editRequest struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

type renameRequest struct {
	DisplayName string `json:"displayName"`
}

type listResponse struct {
	Pitches []domain.Session `json:"pitches"`
}

type exportLinkResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

func optionalUser(r *http.Request) *domain.User {
	if u, ok := auth.UserFrom(r.Context()); ok {
		return &u
	}
	return nil
}

// mustUser is only called behind requireUser.
func mustUser(r *http.Request) domain.User {
	u, _ := auth.UserFrom(r.Context())
	return u
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text := req.Text
	if text == "" {
		text = req.Idea
	}
	out, err := h.pitches.Generate(r.Context(), usecase.GenerateInput{
		Owner:     optionalUser(r),
		SessionID: req.SessionID,
		Text:      text,
		Tone:      req.Tone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := mustUser(r)
	out, err := h.pitches.Edit(r.Context(), usecase.EditInput{
		Owner:     &u,
		SessionID: chi.URLParam(r, "id"),
		TurnID:    chi.URLParam(r, "turnID"),
		Text:      req.Text,
		Tone:      req.Tone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.gallery.List(r.Context(), mustUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Pitches: sessions})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.gallery.Get(r.Context(), mustUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.gallery.Rename(r.Context(), mustUser(r), chi.URLParam(r, "id"), req.DisplayName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.gallery.Delete(r.Context(), mustUser(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exportPDF streams the PDF, or returns an upload link with ?link=true.
func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	link, _ := strconv.ParseBool(r.URL.Query().Get("link"))
	out, err := h.gallery.Export(r.Context(), mustUser(r), chi.URLParam(r, "id"), link)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if link && out.URL != "" {
		writeJSON(w, http.StatusOK, exportLinkResponse{URL: out.URL, Filename: out.Result.Filename})
		return
	}
	w.Header().Set("Content-Type", out.Result.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+out.Result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Result.Data)
}

func (h *Handler) shareJSON(w http.ResponseWriter, r *http.Request) {
	v, err := h.gallery.Share(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
