package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Brownie44l1/vgg-api/internal/model"
	"github.com/Brownie44l1/vgg-api/internal/pipeline"
	"github.com/Brownie44l1/vgg-api/internal/upload"
	"github.com/Brownie44l1/vgg-api/internal/web"
	"github.com/rs/zerolog/hlog"
)

const (
	msgNoFile      = "No file uploaded"
	msgNoSelection = "No file selected"
	msgInvalidType = "Invalid file type. Please upload an image."
	msgTooLarge    = "File too large"
)

type Handler struct {
	classifier     *pipeline.Classifier
	store          *upload.Store
	maxUploadBytes int64
	topK           int
	numClasses     int
}

func NewHandler(classifier *pipeline.Classifier, store *upload.Store, maxUploadBytes int64, topK, numClasses int) *Handler {
	return &Handler{
		classifier:     classifier,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		topK:           topK,
		numClasses:     numClasses,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(web.IndexHTML)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"model":   "vgg16",
		"classes": h.numClasses,
	})
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

// nextFilePart returns the first part named field that carries a filename
// parameter, and that filename. Parts without one are plain form fields,
// even when they share the field name.
func nextFilePart(mr *multipart.Reader, field string) (*multipart.Part, string, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, "", err
		}
		if part.FormName() != field {
			continue
		}
		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			continue
		}
		if filename, ok := params["filename"]; ok {
			return part, filename, nil
		}
	}
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		log.Debug().Err(err).Msg("Request is not a multipart form")
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}

	part, filename, err := nextFilePart(mr, "file")
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		if !errors.Is(err, io.EOF) {
			log.Debug().Err(err).Msg("Malformed multipart body")
		}
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer part.Close()

	if filename == "" {
		writeError(w, http.StatusBadRequest, msgNoSelection)
		return
	}
	if !upload.AllowedFile(filename) {
		writeError(w, http.StatusBadRequest, msgInvalidType)
		return
	}

	log.Info().Str("filename", filename).Msg("Received file")

	path, err := h.store.Save(part, upload.Extension(filename))
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		log.Error().Err(err).Msg("Failed to store upload")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() {
		if err := h.store.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
		}
	}()

	predictions, err := h.classifier.ClassifyFile(r.Context(), path, h.topK)
	if err != nil {
		status := statusFor(err)
		log.Error().Err(err).Int("status", status).Msg("Prediction failed")
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.PredictionResponse{Predictions: predictions})
}

func statusFor(err error) int {
	if errors.Is(err, pipeline.ErrDecode) {
		return http.StatusUnprocessableEntity
	}
	// ErrShape, ErrInference and anything unexpected.
	return http.StatusInternalServerError
}
