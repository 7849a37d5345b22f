package middleware

import (
	"encoding/json"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
)

// Render serves a guarded render handler over net/http. Props are written as
// JSON; redirects as HTTP redirects. Errors other than the session reset are
// logged and answered with 500.
func Render[P any](engine *goAuthClient.Engine, fn goAuthClient.RenderFunc[P], opts *goAuthClient.GuardOptions) http.Handler {
	guarded := goAuthClient.WithSessionGuard(engine, fn, opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := engine.NewRenderContext(r.Context(), session.HTTP(w, r))
		defer rc.Close()

		res, err := guarded(rc)
		if err != nil {
			engine.Logger().Error("render", zap.Error(err), zap.String("path", r.URL.Path))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if res.Redirect != nil {
			http.Redirect(w, r, res.Redirect.Destination, res.Redirect.StatusCode())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res.Props); err != nil {
			engine.Logger().Warn("render: encode props", zap.Error(err))
		}
	})
}
