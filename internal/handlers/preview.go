package handlers

import (
	"net/http"

	"redirclean/internal/rewrite"
)

type previewRequest struct {
	Content     string           `json:"content"`
	Mode        rewrite.Mode     `json:"mode,omitempty"`
	Mapping     rewrite.Mapping  `json:"mapping"`
	URLHandling *rewrite.Options `json:"url_handling,omitempty"`
}

type previewResponse struct {
	Content      string           `json:"content"`
	Changes      []rewrite.Change `json:"changes"`
	Replacements int              `json:"replacements"`
	Rejected     []rewrite.Pair   `json:"rejected"`
}

// Preview rewrites a piece of content without touching any store, so
// operators can check a mapping before starting a job.
func Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePreview(req.Content, req.Mapping); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	opts := rewrite.DefaultOptions()
	if req.URLHandling != nil {
		opts = *req.URLHandling
	}
	mode := req.Mode
	switch mode {
	case "":
		mode = rewrite.ModeHTML
	case rewrite.ModeHTML, rewrite.ModeURL, rewrite.ModeAuto:
	default:
		writeError(w, http.StatusBadRequest, "mode must be html, url or auto")
		return
	}

	valid, rejected := req.Mapping.Valid()
	res := rewrite.New(opts).Apply(req.Content, mode, valid)

	resp := previewResponse{
		Content:      res.Content,
		Changes:      res.Changes,
		Replacements: res.Replacements(),
		Rejected:     rejected,
	}
	if resp.Changes == nil {
		resp.Changes = []rewrite.Change{}
	}
	if resp.Rejected == nil {
		resp.Rejected = []rewrite.Pair{}
	}
	writeJSON(w, http.StatusOK, resp)
}
