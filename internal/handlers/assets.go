package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mouldconnect/apiserver/internal/storage"
)

// ObjectReader opens stored objects by key.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// AssetHandler serves uploaded profile images.
type AssetHandler struct {
	objects ObjectReader
	logger  *slog.Logger
}

func NewAssetHandler(objects ObjectReader, logger *slog.Logger) *AssetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetHandler{objects: objects, logger: logger}
}

// AssetRouter mounts the image route. Stored profile paths are
// "eRepo/<key>", so mount this under "/eRepo".
func AssetRouter(r chi.Router, handler *AssetHandler) {
	r.Get("/{name}", handler.ServeImage)
}

func (h *AssetHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "name")
	if err := storage.ValidateKey(key); err != nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	body, err := h.objects.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", storage.ContentTypeForKey(key))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "stream image failed", slog.String("key", key), slog.Any("err", err))
	}
}
