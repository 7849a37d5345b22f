package middleware

import (
	"net/http"
	"sync"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/gofiber/fiber/v3"
)

type fiberLocalsKey int

const (
	fiberSessionKey fiberLocalsKey = iota
	fiberRenderKey
)

// Fiber returns a fiber handler that gates the rest of the chain on a session
// satisfying opts, and turns an ErrAuthToken returned by the chain into a
// session reset redirect. The render context installed for the chain is closed
// before the handler returns.
func Fiber(engine *goAuthClient.Engine, opts *goAuthClient.GuardOptions) fiber.Handler {
	g := engine.NewGuard(opts)
	return func(c fiber.Ctx) error {
		sc := FiberSession(c)
		ctx := c.Context()

		redirect, err := g.Admit(ctx, sc)
		if err != nil {
			return err
		}
		if redirect != nil {
			return c.Redirect().Status(redirect.StatusCode()).To(redirect.Destination)
		}

		rc := engine.NewRenderContext(ctx, sc)
		c.Locals(fiberRenderKey, rc)

		// The fiber Ctx is recycled after return, so renewals must settle first.
		err = c.Next()
		rc.Close()
		if err != nil {
			if redirect, ok := g.Recover(ctx, sc, err); ok {
				return c.Redirect().Status(redirect.StatusCode()).To(redirect.Destination)
			}
			return err
		}
		return nil
	}
}

// RenderContextFromFiber returns the render context installed by [Fiber].
func RenderContextFromFiber(c fiber.Ctx) (*goAuthClient.RenderContext, bool) {
	rc, ok := c.Locals(fiberRenderKey).(*goAuthClient.RenderContext)
	return rc, ok
}

// FiberSession returns the session context of a fiber request. Repeated calls
// on the same request share one cookie jar.
func FiberSession(c fiber.Ctx) session.Context {
	if jar, ok := c.Locals(fiberSessionKey).(*fiberJar); ok {
		return session.Context{Jar: jar}
	}
	jar := &fiberJar{c: c, overlay: make(map[string]*string)}
	c.Locals(fiberSessionKey, jar)
	return session.Context{Jar: jar}
}

// fiberJar adapts a fiber request to session.CookieJar. Writes are kept in
// overlay so reads later in the same request observe them; a nil entry marks a
// cleared cookie.
type fiberJar struct {
	c       fiber.Ctx
	mu      sync.Mutex
	overlay map[string]*string
}

func (j *fiberJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if v, ok := j.overlay[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	v := j.c.Cookies(name)
	return v, v != ""
}

func (j *fiberJar) Set(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.c.Cookie(&fiber.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		Domain:   cookie.Domain,
		MaxAge:   cookie.MaxAge,
		Expires:  cookie.Expires,
		Secure:   cookie.Secure,
		HTTPOnly: cookie.HttpOnly,
		SameSite: fiberSameSite(cookie.SameSite),
	})
	value := cookie.Value
	j.overlay[cookie.Name] = &value
}

func (j *fiberJar) Clear(name, path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.c.Cookie(&fiber.Cookie{
		Name:    name,
		Value:   "",
		Path:    path,
		Expires: time.Unix(0, 0),
	})
	j.overlay[name] = nil
}

func fiberSameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return fiber.CookieSameSiteLaxMode
	case http.SameSiteStrictMode:
		return fiber.CookieSameSiteStrictMode
	case http.SameSiteNoneMode:
		return fiber.CookieSameSiteNoneMode
	default:
		return ""
	}
}
