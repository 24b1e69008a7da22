package metrics

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// kbPrefix marks the knowledge base's own metric families.
const kbPrefix = "kb_"

// StartServer serves the metrics gathered by g on their own port in the
// background and returns the server's shutdown function.
func StartServer(port int, g prometheus.Gatherer) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      newServeMux(g),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}

func newServeMux(g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(g))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		families, err := g.Gather()
		if err != nil {
			slog.Warn("gathering metrics for index failed", "error", err)
		}
		var b strings.Builder
		b.WriteString(`<html><body><h1>Compliance Knowledge Base Metrics</h1><p><a href="/metrics">/metrics</a></p><ul>`)
		for _, mf := range families {
			if !strings.HasPrefix(mf.GetName(), kbPrefix) {
				continue
			}
			fmt.Fprintf(&b, "<li><code>%s</code> %s</li>", html.EscapeString(mf.GetName()), html.EscapeString(mf.GetHelp()))
		}
		b.WriteString("</ul></body></html>")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, b.String())
	})
	return mux
}
