package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/storage"
)

// MountUploads serves archived curriculum uploads:
// GET /{uploadID}/{fileName} streams the stored spreadsheet.
func MountUploads(r chi.Router, bs storage.BlobStore, log *logger.Logger) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if key == "" || !strings.HasPrefix(key, "upload_") {
			fail(w, r, log, apierr.NotFound(errors.New("no such upload")))
			return
		}
		rc, err := bs.Get(r.Context(), path.Join("uploads", key))
		if errors.Is(err, storage.ErrNotFound) {
			fail(w, r, log, apierr.NotFound(fmt.Errorf("upload %s not found", key)))
			return
		}
		if err != nil {
			fail(w, r, log, err)
			return
		}
		defer rc.Close()

		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))
		_, _ = io.Copy(w, rc)
	})
}
