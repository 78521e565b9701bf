package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/types"
)

const ImageFormField = "image"

func (s *Server) checkName(r *http.Request) error {
	if name := mux.Vars(r)["name"]; name != s.Name {
		return errors.NewServableUnknownError(name)
	}
	return nil
}

func queryK(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return 0, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k <= 0 {
		return 0, errors.NewParameterInvalidError(fmt.Sprintf("k must be a positive integer, got %q", raw))
	}
	return k, nil
}

func (s *Server) GetModel(w http.ResponseWriter, r *http.Request) {
	if err := s.checkName(r); err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, s.status())
}

func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	if err := s.checkName(r); err != nil {
		ResponseError(w, err)
		return
	}
	k, err := queryK(r)
	if err != nil {
		ResponseError(w, err)
		return
	}
	req := types.PredictRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ResponseError(w, errors.NewParameterInvalidError(fmt.Sprintf("decode request: %v", err)))
		return
	}
	resp, err := s.predict(r.Context(), req.Images, k)
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, resp)
}

// PredictImage classifies the files uploaded in the "image" fields of a multipart form.
func (s *Server) PredictImage(w http.ResponseWriter, r *http.Request) {
	if err := s.checkName(r); err != nil {
		ResponseError(w, err)
		return
	}
	k, err := queryK(r)
	if err != nil {
		ResponseError(w, err)
		return
	}
	if err := r.ParseMultipartForm(MaxBytesRead); err != nil {
		ResponseError(w, errors.NewParameterInvalidError(fmt.Sprintf("parse multipart form: %v", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[ImageFormField]
	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			ResponseError(w, errors.NewInternalError(err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ResponseError(w, errors.NewParameterInvalidError(fmt.Sprintf("read %s: %v", fh.Filename, err)))
			return
		}
		images = append(images, data)
	}
	resp, err := s.predict(r.Context(), images, k)
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, resp)
}
