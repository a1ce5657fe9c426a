package conn

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tobsdb/tdbadmin/internal/auth"
	"github.com/tobsdb/tdbadmin/pkg"
)

type Server struct {
	Manager *Manager
	Hub     *Hub
	Auth    *auth.Validator
	// origin allowed to call the API from a browser; "*" allows any
	CorsOrigin string
}

func NewServer(manager *Manager, validator *auth.Validator, cors_origin string) *Server {
	s := &Server{Manager: manager, Auth: validator, CorsOrigin: cors_origin}
	s.Hub = NewHub(s.checkOrigin)
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return len(origin) == 0 || s.CorsOrigin == "*" || origin == s.CorsOrigin
}

type handlerFunc func(r *http.Request) Response

func handle(f handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := f(r)
		pkg.DebugLog(r.Method, r.URL.Path, res.Status)
		writeResponse(w, res)
	}
}

// Handler routes the API. Everything but /health and /login sits behind auth.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /{$}", handle(s.ListDatabasesHandler))
	api.HandleFunc("POST /{$}", handle(s.CreateDatabaseHandler))
	api.HandleFunc("DELETE /{id}", handle(s.DeleteDatabaseHandler))
	api.HandleFunc("GET /types", handle(s.TypesHandler))
	api.HandleFunc("GET /info", handle(s.InfoHandler))

	api.HandleFunc("GET /db/{id}", handle(s.DatabaseInfoHandler))
	api.HandleFunc("POST /db/{id}", handle(s.CreateTableHandler))
	api.HandleFunc("POST /schema/{id}", handle(s.ApplySchemaHandler))
	api.HandleFunc("DELETE /db/{id}/{table}/drop", handle(s.DropTableHandler))
	api.HandleFunc("GET /db/{id}/{table}", handle(s.GetTableHandler))
	api.HandleFunc("POST /db/{id}/{table}", handle(s.CreateRowHandler))
	api.HandleFunc("PUT /db/{id}/{table}/{pk}", handle(s.UpdateRowHandler))
	api.HandleFunc("DELETE /db/{id}/{table}", handle(s.DeleteRowHandler))

	api.HandleFunc("GET /ws/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := s.Manager.GetById(id); !ok {
			writeResponse(w, ErrorResponse(ErrConnectionNotFound))
			return
		}
		s.Hub.Subscribe(w, r, id)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /login", handle(s.LoginHandler))
	mux.Handle("/", s.Auth.Middleware(api))

	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(origin) > 0 && (s.CorsOrigin == "*" || origin == s.CorsOrigin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Listen serves until SIGINT or SIGTERM, then closes every database.
func (s *Server) Listen(port int) {
	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := srv.ListenAndServe()
		if err != http.ErrServerClosed {
			pkg.FatalLog(err)
		}
	}()

	pkg.InfoLog("tdbadmin listening on port", port, "serving", s.Manager.Dir)
	<-exit
	pkg.DebugLog("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Hub.Close()
	srv.Shutdown(ctx)
	s.Manager.Close()
}
