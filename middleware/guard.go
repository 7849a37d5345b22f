package middleware

import (
	"context"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/session"
	"go.uber.org/zap"
)

type renderContextKey struct{}

// RenderContextFromContext returns the render context installed by [Guard].
func RenderContextFromContext(ctx context.Context) (*goAuthClient.RenderContext, bool) {
	rc, ok := ctx.Value(renderContextKey{}).(*goAuthClient.RenderContext)
	return rc, ok
}

// Guard admits requests that carry a session satisfying opts and redirects the
// rest. Admitted requests carry a *goAuthClient.RenderContext in their context;
// it is closed when next returns.
//
// Guard only gates admission. Use [Render] when the handler may raise
// goAuthClient.ErrAuthToken and needs the session reset.
func Guard(engine *goAuthClient.Engine, opts *goAuthClient.GuardOptions) func(http.Handler) http.Handler {
	g := engine.NewGuard(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := session.HTTP(w, r)

			redirect, err := g.Admit(r.Context(), sc)
			if err != nil {
				engine.Logger().Error("guard: admit", zap.Error(err), zap.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if redirect != nil {
				http.Redirect(w, r, redirect.Destination, redirect.StatusCode())
				return
			}

			rc := engine.NewRenderContext(r.Context(), sc)
			ctx := context.WithValue(r.Context(), renderContextKey{}, rc)
			next.ServeHTTP(w, r.WithContext(ctx))
			rc.Close()
		})
	}
}
