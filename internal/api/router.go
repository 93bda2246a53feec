package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/unrolled/render"
	"github.com/urfave/negroni"
	"go.uber.org/zap"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
)

// Backend is the node operations the gateway exposes.
type Backend interface {
	Write(key, value string) (causal.WriteResult, error)
	Read(key string) (causal.ReadResult, error)
	Replicate(msg causal.Message) (causal.Outcome, error)
	Stats() causal.Stats
	Pending() []causal.PendingEntry
}

// NewHandler returns the gateway handler. metrics may be nil.
func NewHandler(b Backend, metrics http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	rd := render.New(render.Options{IndentJSON: true})
	h := &handler{backend: b, rd: rd}

	router := mux.NewRouter()
	router.HandleFunc("/put/{key}", h.put).Methods(http.MethodPut)
	router.HandleFunc("/get/{key}", h.get).Methods(http.MethodGet)
	router.HandleFunc("/write", h.write).Methods(http.MethodPost)
	router.HandleFunc("/read", h.read).Methods(http.MethodGet)
	router.HandleFunc("/replicate", h.replicate).Methods(http.MethodPost)
	router.HandleFunc("/status", h.status).Methods(http.MethodGet)
	router.HandleFunc("/pending", h.pending).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	n := negroni.New(recovery, accessLog(logger))
	n.UseHandler(router)
	return n
}

// accessLog logs every request at debug level.
func accessLog(logger *zap.Logger) negroni.Handler {
	return negroni.HandlerFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		start := time.Now()
		next(rw, r)
		res := rw.(negroni.ResponseWriter)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", res.Status()),
			zap.Duration("took", time.Since(start)))
	})
}
