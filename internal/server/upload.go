package server

import (
	"errors"
	"net/http"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
)

// handleUpload stores a PDF, runs it through the pipeline and returns the structured report.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, s.logger, common.NewAppError(common.CodePayloadTooLarge, "upload exceeds size limit", common.ErrTooLarge))
			return
		}
		writeError(w, r, s.logger, common.InvalidInputErrorf("multipart field %q is required", "file"))
		return
	}
	defer file.Close()

	if !constants.IsPDFName(hdr.Filename) {
		writeError(w, r, s.logger, common.NewAppError(common.CodeInvalidFile, "only PDF files are allowed", common.ErrInvalidInput))
		return
	}

	stored, path, _, err := s.stager.Save(hdr.Filename, file)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	out, err := s.processor.ProcessFile(r.Context(), path, stored)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Filename:         hdr.Filename,
		StoredAs:         stored,
		Path:             path,
		SessionID:        out.Session.ID,
		UserID:           out.User.ID,
		ExtractionMethod: out.Method,
		Pages:            out.Pages,
		StructuredData:   out.Report,
	})
}
