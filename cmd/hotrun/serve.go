package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/executor"
)

const mimeMsgpack = "application/msgpack"

// maxRequestBody bounds a decoded request, source text included.
const maxRequestBody = 1 << 20

func newServeCmd(a *app) *cobra.Command {
	var (
		addr string
		sf   sessionFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one session over HTTP",
		Long: `Start an HTTP server in front of a single session. As in the shell, a
new run stops the previous one first.

Endpoints:
  POST   /compile   Compile {"source","lang","name"}; returns diagnostics or entry points
  POST   /run       Compile and start {"source","lang","name","class","method","timeout"}
  POST   /stop      Stop the current run
  GET    /status    State of the current run
  GET    /output    Console output of the current run (text/plain)
  GET    /health    Health check

Requests and responses are JSON. Send Content-Type: application/msgpack or
Accept: application/msgpack to use msgpack instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sf.apply(cmd.Flags(), &a.cfg); err != nil {
				return err
			}

			s, err := a.newSession(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr, newServer(s, a.cfg.Run.Language, a.logger), a.logger)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Address to listen on")
	sf.register(cmd.Flags())
	return cmd
}

// serve runs the HTTP server until ctx is done, then shuts it down.
func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("hotrun server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type server struct {
	s       *executor.Session
	lang    string
	logger  *slog.Logger
	handler http.Handler
}

func newServer(s *executor.Session, defaultLang string, logger *slog.Logger) *server {
	srv := &server{s: s, lang: defaultLang, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /compile", srv.handleCompile)
	mux.HandleFunc("POST /run", srv.handleRun)
	mux.HandleFunc("POST /stop", srv.handleStop)
	mux.HandleFunc("GET /status", srv.handleStatus)
	mux.HandleFunc("GET /output", srv.handleOutput)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv.handler = mux
	return srv
}

func (srv *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.handler.ServeHTTP(w, r)
}

type compileRequest struct {
	Source string `json:"source" msgpack:"source"`
	Lang   string `json:"lang,omitempty" msgpack:"lang,omitempty"`
	Name   string `json:"name,omitempty" msgpack:"name,omitempty"`
}

type compileResponse struct {
	OK          bool              `json:"ok" msgpack:"ok"`
	Diagnostics []diag.Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
	EntryPoints []string          `json:"entry_points,omitempty" msgpack:"entry_points,omitempty"`
}

type runRequest struct {
	compileRequest
	Class   string `json:"class,omitempty" msgpack:"class,omitempty"`
	Method  string `json:"method,omitempty" msgpack:"method,omitempty"`
	Timeout string `json:"timeout,omitempty" msgpack:"timeout,omitempty"`
}

type statusResponse struct {
	Run        uint64 `json:"run" msgpack:"run"`
	Class      string `json:"class,omitempty" msgpack:"class,omitempty"`
	Method     string `json:"method,omitempty" msgpack:"method,omitempty"`
	Language   string `json:"language,omitempty" msgpack:"language,omitempty"`
	State      string `json:"state" msgpack:"state"`
	DurationMs int64  `json:"duration_ms" msgpack:"duration_ms"`
	Error      string `json:"error,omitempty" msgpack:"error,omitempty"`
}

type errorResponse struct {
	Error       string            `json:"error" msgpack:"error"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
}

func (srv *server) source(req compileRequest) (executor.Source, error) {
	name := req.Lang
	if name == "" {
		name = srv.lang
	}

	var (
		lang executor.Language
		err  error
	)
	switch {
	case name != "":
		lang, err = srv.s.Selector().SelectName(name)
	case req.Name != "":
		lang, err = srv.s.Selector().ForFile(req.Name)
	default:
		err = errors.New("lang required")
	}
	if err != nil {
		return executor.Source{}, err
	}
	return source(lang, req.Name, req.Source), nil
}

func (srv *server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	src, err := srv.source(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	unit, err := srv.s.Compile(r.Context(), src)
	var ce *executor.CompilationError
	switch {
	case errors.As(err, &ce):
		writeResponse(w, r, http.StatusOK, compileResponse{Diagnostics: ce.Diagnostics})
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
	default:
		writeResponse(w, r, http.StatusOK, compileResponse{
			OK:          true,
			Diagnostics: []diag.Diagnostic{},
			EntryPoints: entryPoints(unit),
		})
	}
}

func (srv *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	src, err := srv.source(req.compileRequest)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var opts []executor.Option
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid timeout: %w", err))
			return
		}
		opts = append(opts, executor.WithTimeout(d))
	}

	h, err := srv.s.Run(r.Context(), executor.Request{Source: src, Class: req.Class, Method: req.Method}, opts...)
	var ce *executor.CompilationError
	switch {
	case errors.As(err, &ce):
		writeResponse(w, r, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Diagnostics: ce.Diagnostics})
	case errors.Is(err, executor.ErrEntryPointNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, executor.ErrUnsupportedLanguage):
		writeError(w, r, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
	default:
		srv.logger.Debug("run started over http", "run", h.ID())
		writeResponse(w, r, http.StatusAccepted, status(h))
	}
}

func (srv *server) handleStop(w http.ResponseWriter, r *http.Request) {
	srv.s.Stop()
	writeResponse(w, r, http.StatusOK, status(srv.s.Host().Current()))
}

func (srv *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, status(srv.s.Host().Current()))
}

func (srv *server) handleOutput(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h := srv.s.Host().Current(); h != nil {
		w.Header().Set("X-Run", strconv.FormatUint(h.ID(), 10))
	}
	_, _ = io.WriteString(w, srv.s.Console().String())
}

func status(h *executor.Handle) statusResponse {
	if h == nil {
		return statusResponse{State: executor.Idle.String()}
	}
	resp := statusResponse{
		Run:        h.ID(),
		Class:      h.Entry().Class,
		Method:     h.Entry().Method,
		Language:   h.Entry().Language.String(),
		State:      h.State().String(),
		DurationMs: h.Duration().Milliseconds(),
	}
	if err := h.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), mimeMsgpack) {
		if err := msgpack.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("invalid msgpack: %w", err)
		}
		return nil
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func wantsMsgpack(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), mimeMsgpack)
}

func writeResponse(w http.ResponseWriter, r *http.Request, code int, v any) {
	if wantsMsgpack(r) {
		data, err := msgpack.Marshal(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", mimeMsgpack)
		w.WriteHeader(code)
		_, _ = w.Write(data)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	writeResponse(w, r, code, errorResponse{Error: err.Error()})
}
