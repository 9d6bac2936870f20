package reportserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/report"
)

type routes struct {
	dir     string
	metrics http.Handler
	logger  *zap.SugaredLogger
}

// NewHandler builds the HTTP handler serving run reports from cfg.Dir.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Dir == "" {
		return nil, errors.New("reportserver: results dir is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("reportserver: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reportserver: %s is not a directory", cfg.Dir)
	}
	rt := &routes{dir: cfg.Dir, metrics: cfg.Metrics.Handler(), logger: logging.OrNop(cfg.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/", rt.index)
	r.Get("/healthz", rt.health)
	r.Handle("/metrics", rt.metrics)
	r.Get("/assets/report.css", rt.stylesheet)
	r.Get("/runs/{suite}/{runID}", rt.runReport)
	r.Get("/runs/{suite}/{runID}/results.json", rt.runResults)
	return r, nil
}

func (rt *routes) index(w http.ResponseWriter, r *http.Request) {
	refs, err := report.ListRuns(rt.dir)
	if err != nil {
		rt.fail(w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage(refs).Render(r.Context(), w); err != nil {
		rt.logger.Warnw("render index", "error", err)
	}
}

func (*routes) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (*routes) stylesheet(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, report.Stylesheet)
}

func (rt *routes) runReport(w http.ResponseWriter, r *http.Request) {
	ref, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	results, err := report.LoadResults(ref.ResultsPath())
	if err != nil {
		rt.fail(w, err, http.StatusInternalServerError)
		return
	}
	page, err := report.RenderRun(r.Context(), results)
	if err != nil {
		rt.fail(w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, page)
}

func (rt *routes) runResults(w http.ResponseWriter, r *http.Request) {
	ref, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, ref.ResultsPath())
}

// lookup resolves URL params to a run directory, rejecting path traversal.
func (rt *routes) lookup(w http.ResponseWriter, r *http.Request) (report.RunRef, bool) {
	suiteName := chi.URLParam(r, "suite")
	runID := chi.URLParam(r, "runID")
	if !validSegment(suiteName) || !validSegment(runID) {
		http.NotFound(w, r)
		return report.RunRef{}, false
	}
	ref := report.RunRef{Suite: suiteName, RunID: runID, Dir: filepath.Join(rt.dir, suiteName, runID)}
	if _, err := os.Stat(ref.ResultsPath()); err != nil {
		http.NotFound(w, r)
		return report.RunRef{}, false
	}
	return ref, true
}

func (rt *routes) fail(w http.ResponseWriter, err error, status int) {
	rt.logger.Errorw("report request failed", "error", err)
	http.Error(w, http.StatusText(status), status)
}

func validSegment(segment string) bool {
	return segment != "" && segment != "." && segment != ".." && filepath.Base(segment) == segment
}

func indexPage(refs []report.RunRef) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var err error
		write := func(parts ...string) {
			for _, part := range parts {
				if err == nil {
					_, err = io.WriteString(w, part)
				}
			}
		}
		write(`<!doctype html><html lang="en"><head><meta charset="utf-8"/><title>fllm runs</title>`,
			`<link rel="stylesheet" href="/assets/report.css"/></head><body><h1>fllm runs</h1>`)
		if len(refs) == 0 {
			write(`<p>No runs found.</p>`)
		} else {
			write(`<table><thead><tr><th>Suite</th><th>Run</th><th>Results</th></tr></thead><tbody>`)
			for i := len(refs) - 1; i >= 0; i-- {
				ref := refs[i]
				link := "/runs/" + templ.EscapeString(ref.Suite) + "/" + templ.EscapeString(ref.RunID)
				write(`<tr><td>`, templ.EscapeString(ref.Suite), `</td><td><a href="`, link, `">`,
					templ.EscapeString(ref.RunID), `</a></td><td><a href="`, link, `/results.json">json</a></td></tr>`)
			}
			write(`</tbody></table>`)
		}
		write(`</body></html>`)
		return err
	})
}
