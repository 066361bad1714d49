package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"common-addresses/internal/finder"
	"common-addresses/internal/logging"
)

// filesField is the multipart field every upload must use.
const filesField = "files"

// multipartOverhead bounds the non-file bytes of a request body.
const multipartOverhead = 1 << 20

var (
	errFileTooLarge   = errors.New("file too large")
	errBodyTooLarge   = errors.New("request body too large")
	errTooManyUploads = errors.New("too many files")
)

// handleFindCommon handles POST /api/find-common.
//
// Form field: files (2 to 10 parts). Each part is a newline-separated text
// file or, when named *.json / *.json.txt, a JSON array of strings.
func (s *Server) handleFindCommon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	maxFiles := s.finder.Config().MaxFiles
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*s.cfg.MaxFileBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Error:   "Bad request",
			Message: "Expected a multipart/form-data body with a \"files\" field",
		})
		return
	}

	uploads, err := readUploads(mr, maxFiles, s.cfg.MaxFileBytes)
	switch {
	case errors.Is(err, errTooManyUploads):
		writeError(w, http.StatusBadRequest, tooManyFiles(maxFiles))
		return
	case errors.Is(err, errFileTooLarge), errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, errorBody{
			Error:   "File too large",
			Message: err.Error(),
		})
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, errorBody{
			Error:   "Bad request",
			Message: "Malformed multipart body",
		})
		return
	}

	res, err := s.finder.Find(r.Context(), uploads)
	switch {
	case err == nil:
	case errors.Is(err, finder.ErrInsufficientFiles):
		writeError(w, http.StatusBadRequest, errInsufficientFiles)
		return
	case errors.Is(err, finder.ErrTooManyFiles):
		writeError(w, http.StatusBadRequest, tooManyFiles(maxFiles))
		return
	case errors.Is(err, finder.ErrInsufficientValidFiles):
		writeError(w, http.StatusBadRequest, errInvalidFiles)
		return
	default:
		logging.Error("find_common_failed", logging.Fields{
			"request_id": logging.RequestID(r.Context()),
			"files":      len(uploads),
		}, err)
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, findCommonResp{
		Success:         true,
		Count:           res.Count(),
		CommonAddresses: res.Common,
	})
}

// readUploads collects the parts of the files field. Other fields are
// ignored.
func readUploads(mr *multipart.Reader, maxFiles int, maxFileBytes int64) ([]finder.Upload, error) {
	var uploads []finder.Upload
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return uploads, nil
		}
		if err != nil {
			return nil, classifyBodyErr(err)
		}

		if part.FormName() != filesField {
			_, err := io.Copy(io.Discard, part)
			_ = part.Close()
			if err != nil {
				return nil, classifyBodyErr(err)
			}
			continue
		}

		if len(uploads) == maxFiles {
			_ = part.Close()
			return nil, errTooManyUploads
		}

		content, err := io.ReadAll(io.LimitReader(part, maxFileBytes+1))
		_ = part.Close()
		if err != nil {
			return nil, classifyBodyErr(err)
		}
		if int64(len(content)) > maxFileBytes {
			return nil, fmt.Errorf("%w: %q exceeds %d bytes", errFileTooLarge, part.FileName(), maxFileBytes)
		}

		uploads = append(uploads, finder.Upload{Name: part.FileName(), Content: content})
	}
}

func classifyBodyErr(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, mbe.Limit)
	}
	return err
}
