package api

import (
	"fmt"
	"net/http"

	"github.com/MrWong99/relayvox/internal/catalog"
)

type languageResponse struct {
	Language    catalog.Language `json:"language"`
	Description string           `json:"description"`
}

type voiceResponse struct {
	Voice       catalog.Voice `json:"voice"`
	Description string        `json:"description"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Languages())
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	l, ok := s.catalog.ResolveLanguage(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:       fmt.Sprintf("unknown language %q", code),
			Suggestions: s.catalog.Suggest(code),
		})
		return
	}
	writeJSON(w, http.StatusOK, languageResponse{Language: l, Description: catalog.DescribeLanguage(l)})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	v, ok := s.catalog.ResolveVoice(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown voice %q", name))
		return
	}
	writeJSON(w, http.StatusOK, voiceResponse{Voice: v, Description: catalog.DescribeVoice(v)})
}
