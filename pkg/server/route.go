package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

const NameRegexp = `[a-zA-Z0-9][a-zA-Z0-9._-]*`

func (s *Server) Handler() http.Handler {
	return s.route()
}

func (s *Server) route() http.Handler {
	maxBytes := s.MaxBytesRead
	if maxBytes <= 0 {
		maxBytes = MaxBytesRead
	}
	mux := mux.NewRouter()
	mux = mux.StrictSlash(true)
	// healthy
	mux.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	models := mux.PathPrefix("/v1/models").Subrouter()
	models.Methods("GET").Path("/{name:" + NameRegexp + "}").HandlerFunc(s.GetModel)
	models.Methods("POST").Path("/{name:" + NameRegexp + "}:predict").HandlerFunc(MaxBytesReadHandler(s.Predict, maxBytes))
	models.Methods("POST").Path("/{name:" + NameRegexp + "}/image").HandlerFunc(MaxBytesReadHandler(s.PredictImage, maxBytes))
	return mux
}
