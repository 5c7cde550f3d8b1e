package http

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"photo-quiz-service/internal/app"
)

const qrSize = 256

// Options tune the HTTP surface.
type Options struct {
	Prefix    string
	PublicURL string
	Tick      time.Duration
	Verbose   bool
}

type poolSummary struct {
	Size      int    `json:"size"`
	Male      int    `json:"male"`
	Female    int    `json:"female"`
	Questions int    `json:"questions"`
	Playable  bool   `json:"playable"`
	Error     string `json:"error,omitempty"`
}

// NewRouter mounts the quiz endpoints:
//
//	GET /healthz         liveness
//	GET /ws              quiz websocket
//	GET /images/*path    pool photos
//	GET /qr              PNG QR code of the public URL
//	GET /api/pool        pool summary
func NewRouter(service *app.QuizService, pools app.PoolRepository, images ImageResolver, opts Options) http.Handler {
	prefix := strings.TrimSuffix(opts.Prefix, "/")
	opts.Prefix = prefix

	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Printf("panic serving %s: %v", r.URL.Path, i)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}

	mux.GET(prefix+"/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})

	wsHandler := NewWSHandler(service, images, opts)
	mux.HandlerFunc(http.MethodGet, prefix+"/ws", wsHandler.ServeWS)

	mux.GET(prefix+"/images/*path", serveImage(images))
	mux.GET(prefix+"/qr", serveQR(opts))
	mux.GET(prefix+"/api/pool", servePool(pools, service.Rules().Size))

	return mux
}

func serveImage(images ImageResolver) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if images == nil {
			http.NotFound(w, r)
			return
		}
		path, ok := images.Resolve(strings.TrimPrefix(p.ByName("path"), "/"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		http.ServeFile(w, r, path)
	}
}

// serveQR encodes the public URL, or the URL the request came in on, as a PNG.
func serveQR(opts Options) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		target := opts.PublicURL
		if target == "" {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
				scheme = fwd
			}
			target = fmt.Sprintf("%s://%s%s/", scheme, r.Host, opts.Prefix)
		}

		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func servePool(pools app.PoolRepository, size int) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		summary := poolSummary{}
		status := http.StatusOK

		pool, err := pools.GetPool(r.Context())
		if err != nil {
			summary.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			summary.Size = pool.Size()
			summary.Male = len(pool.Names.Male)
			summary.Female = len(pool.Names.Female)
			summary.Questions = min(size, pool.Size())
			summary.Playable = len(pool.Names.All()) >= 4
		}

		writeJSON(w, status, summary)
	}
}
