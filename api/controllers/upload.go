package controllers

import (
	"io"
	"net/http"

	"github.com/kirki-ai/kirki-backend/api/responses"
	"github.com/kirki-ai/kirki-backend/internal/recordings"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
)

type uploadResponse struct {
	Recording recordingResponse `json:"recording"`
	JobID     string            `json:"job_id,omitempty"`
	JobMode   string            `json:"job_mode,omitempty"`
}

type multiUploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

func readMultipartFile(r *http.Request, field string, maxBytes int64) (recordings.UploadInput, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return recordings.UploadInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return recordings.UploadInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file field missing")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return recordings.UploadInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read uploaded file")
	}
	return recordings.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// Upload handles a single multipart file upload.
func Upload(svc recordings.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recording service unavailable"))
			return
		}

		input, err := readMultipartFile(r, "file", maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recording, handle, err := svc.Upload(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := uploadResponse{Recording: recordingResponseFromModel(recording)}
		if handle != nil {
			resp.JobID = handle.JobID
			resp.JobMode = string(handle.Mode)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// UploadMultiple handles a batch multipart upload. Each file succeeds or
// fails independently.
func UploadMultiple(svc recordings.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recording service unavailable"))
			return
		}

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "files field missing"))
			return
		}

		uploaded := make([]uploadResponse, 0, len(r.MultipartForm.File["files"]))
		failed := make([]multiUploadFailure, 0)
		for _, header := range r.MultipartForm.File["files"] {
			file, err := header.Open()
			if err != nil {
				failed = append(failed, multiUploadFailure{Filename: header.Filename, Error: "unreadable file"})
				continue
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				failed = append(failed, multiUploadFailure{Filename: header.Filename, Error: "unreadable file"})
				continue
			}

			recording, handle, err := svc.Upload(r.Context(), recordings.UploadInput{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Content:     content,
			})
			if err != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "batch upload item failed")
				failed = append(failed, multiUploadFailure{Filename: header.Filename, Error: uploadFailureMessage(err)})
				continue
			}

			item := uploadResponse{Recording: recordingResponseFromModel(recording)}
			if handle != nil {
				item.JobID = handle.JobID
				item.JobMode = string(handle.Mode)
			}
			uploaded = append(uploaded, item)
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"uploaded": uploaded,
			"failed":   failed,
			"total":    len(r.MultipartForm.File["files"]),
		})
	}
}

func uploadFailureMessage(err error) string {
	if appErr := pkgerrors.As(err); appErr != nil {
		return appErr.Message()
	}
	return "upload failed"
}
