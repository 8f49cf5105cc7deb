package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/whisprlink/relay/internal/directory"
)

// QR renders a share-link QR for an issued code. The PNG encodes the
// t.me deep link, so scanning it opens the bot with the code prefilled.
// Unknown codes 404; the response never reveals who owns a code.
func QR(dir *directory.Directory, shareLink func(code string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, ok := directory.NormalizeCode(chi.URLParam(r, "code"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		exists, err := dir.CodeExists(r.Context(), code)
		if err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		if !exists {
			http.NotFound(w, r)
			return
		}

		png, err := qrcode.Encode(shareLink(code), qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to generate qr", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
