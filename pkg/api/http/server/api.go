package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/minesim/minesim/pkg/api"
	"github.com/minesim/minesim/pkg/api/http/common"
	"github.com/minesim/minesim/pkg/structs"
)

const (
	wait = 30 * time.Second

	// multipart parse memory threshold; bigger uploads spill to disk
	multipartMemory = 64 << 20
)

type Server struct {
	addr       string
	debug      bool
	svc        api.API
	log        *zap.SugaredLogger
	exit       chan os.Signal
	httpserver *http.Server
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.Health).Methods(http.MethodGet)
	router.HandleFunc(common.API_DISCOVERIES, s.Discoveries).Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	router.HandleFunc(common.API_DISCOVERY, s.Discovery).Methods(http.MethodGet, http.MethodDelete)
	router.HandleFunc(common.API_RESULT, s.Result).Methods(http.MethodGet)
	router.HandleFunc(common.API_CONFIGURATION, s.Configuration).Methods(http.MethodGet)
	router.HandleFunc(common.API_SCHEMA, s.Schema).Methods(http.MethodGet)

	if s.debug {
		s.log.Infow("debug enabled, adding per-request logging middleware")
		router.Use(s.loggingMiddleware)
	}
	return router
}

func (s *Server) ServeForever(svc api.API) error {
	s.svc = svc

	s.httpserver = &http.Server{
		Handler: s.router(),
		Addr:    s.addr,
		// long write timeout; result archives can be large
		WriteTimeout: 5 * time.Minute,
		ReadTimeout:  5 * time.Minute,
	}

	go func() {
		s.log.Infow("listening", "addr", s.httpserver.Addr)
		if err := s.httpserver.ListenAndServe(); err != nil {
			s.log.Warnw("http server stopped", "err", err)
		}
	}()

	signal.Notify(s.exit, os.Interrupt)
	defer s.Close()
	<-s.exit

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	s.httpserver.Shutdown(ctx)
	return nil
}

// withLinks fills in the job's API links before it goes over the wire.
// The result link only exists once there is a result to fetch.
func withLinks(j *structs.Job) *structs.Job {
	j.StatusURL = strings.Replace(common.API_DISCOVERY, "{id}", j.ID, 1)
	if j.Status == structs.SUCCEEDED {
		j.ArchiveURL = strings.Replace(common.API_RESULT, "{id}", j.ID, 1)
	}
	return j
}

func (s *Server) Discoveries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listDiscoveries(w, r)
	case http.MethodPost:
		s.submitDiscovery(w, r)
	case http.MethodDelete:
		s.deleteAll(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) submitDiscovery(w http.ResponseWriter, r *http.Request) {
	req, err := parseSubmission(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := s.svc.Submit(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}

	// accepted, not complete: the discovery runs asynchronously
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJson(w, withLinks(job))
}

// parseSubmission pulls a SubmitRequest out of a multipart form.
func parseSubmission(r *http.Request) (*structs.SubmitRequest, error) {
	err := r.ParseMultipartForm(multipartMemory)
	if err != nil {
		return nil, err
	}

	req := &structs.SubmitRequest{
		CallbackURL: r.FormValue(common.FieldCallbackURL),
	}

	f, hdr, err := r.FormFile(common.FieldEventLog)
	if err == nil {
		req.LogName = hdr.Filename
		req.Log, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	f, _, err = r.FormFile(common.FieldConfiguration)
	if err == nil {
		req.Config, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	return req, nil
}

func (s *Server) listDiscoveries(w http.ResponseWriter, r *http.Request) {
	q := &structs.Query{}
	err := unmarshalQuery(w, r, q)
	if err != nil {
		return
	}

	items, err := s.svc.Jobs(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	for _, j := range items {
		withLinks(j)
	}
	if s.debug {
		s.log.Debugw("listed discoveries", "url", r.URL.String(), "items", len(items))
	}

	writeJson(w, items)
}

func (s *Server) deleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.svc.DeleteAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, &common.DeleteResponse{Deleted: deleted})
}

func (s *Server) Discovery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	switch r.Method {
	case http.MethodGet:
		job, err := s.svc.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), mapError(err))
			return
		}
		writeJson(w, withLinks(job))
	case http.MethodDelete:
		err := s.svc.Delete(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), mapError(err))
			return
		}
		writeJson(w, &common.DeleteResponse{Deleted: 1})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) Result(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rc, err := s.svc.Result(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="results.tar.gz"`)
	_, err = io.Copy(w, rc)
	if err != nil {
		s.log.Warnw("failed streaming result", "job", id, "err", err)
	}
}

func (s *Server) Configuration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rc, err := s.svc.Configuration(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/yaml")
	_, err = io.Copy(w, rc)
	if err != nil {
		s.log.Warnw("failed streaming configuration", "job", id, "err", err)
	}
}

func (s *Server) Schema(w http.ResponseWriter, r *http.Request) {
	writeJson(w, &common.SchemaResponse{Sections: structs.ConfigSections()})
}

func (s *Server) Close() error {
	s.exit <- os.Interrupt
	return nil
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]bool{"ok": true})
}

func NewServer(addr string, debug bool, log *zap.Logger) *Server {
	return &Server{
		addr:  addr,
		debug: debug,
		log:   log.Sugar(),
		exit:  make(chan os.Signal, 1),
	}
}
