// Package filestore implements the reference file-storage service that the
// file-storage scenario grades. It backs the serve command and end-to-end tests.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Response messages, kept identical to what clients of the service expect.
const (
	msgCreated          = "File created successfully"
	msgMissingFields    = "Missing name or content"
	msgNeedsExtension   = "Filename must have an extension"
	msgFilenameRequired = "Filename is required"
	msgNotFound         = "File not found"
	msgUpdated          = "File updated"
	msgDeleted          = "File deleted"
	msgNoContent        = "no content"
	msgSuccess          = "success"
	msgInternal         = "internal server error"
)

// allowedExtension matches the file extensions the service stores.
var allowedExtension = regexp.MustCompile(`(\.log|\.txt|\.json|\.yaml|\.xml|\.js)$`)

// Server stores uploaded files in a single directory.
type Server struct {
	dir    string
	logger *zap.Logger
	mu     sync.RWMutex
	router chi.Router
}

// New creates a server that keeps files under dir, creating it if needed.
func New(dir string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %q: %w", dir, err)
	}
	s := &Server{dir: dir, logger: logger}
	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Dir returns the upload directory.
func (s *Server) Dir() string {
	return s.dir
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(AccessLog(s.logger))

	r.Route("/api/files", func(r chi.Router) {
		r.Post("/", s.createFile)
		r.Get("/", s.listFiles)
		r.Route("/{filename}", func(r chi.Router) {
			r.Use(validateFilename)
			r.Get("/", s.getFile)
			r.Put("/", s.updateFile)
			r.Delete("/", s.deleteFile)
		})
	})
	return r
}

// validateFilename rejects path filenames that are empty, nested or lack a known extension.
func validateFilename(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "filename")
		switch {
		case name == "":
			writeMessage(w, http.StatusBadRequest, msgFilenameRequired)
		case !allowedExtension.MatchString(name) || filepath.Base(name) != name:
			writeMessage(w, http.StatusBadRequest, msgNeedsExtension)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

type createRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type updateRequest struct {
	Content string `json:"content"`
}

type fileResponse struct {
	Message      string `json:"message"`
	Filename     string `json:"filename"`
	Content      string `json:"content"`
	Extension    string `json:"extension"`
	UploadedDate string `json:"uploadedDate"`
}

type listResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	if req.Filename == "" || req.Content == "" {
		writeMessage(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	if !allowedExtension.MatchString(req.Filename) || filepath.Base(req.Filename) != req.Filename {
		writeMessage(w, http.StatusBadRequest, msgNeedsExtension)
		return
	}

	s.mu.Lock()
	err := os.WriteFile(s.path(req.Filename), []byte(req.Content), 0o644)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("failed to write file", zap.String("filename", req.Filename), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeMessage(w, http.StatusOK, msgCreated)
}

func (s *Server) listFiles(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mu.RUnlock()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	writeJSON(w, http.StatusOK, listResponse{Message: msgSuccess, Files: files})
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	s.mu.RLock()
	data, err := os.ReadFile(s.path(name))
	var info os.FileInfo
	if err == nil {
		info, err = os.Stat(s.path(name))
	}
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		writeMessage(w, http.StatusNotFound, msgNotFound)
		return
	} else if err != nil {
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	ext := filepath.Ext(name)
	if ct := mime.TypeByExtension(ext); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	body := fileResponse{
		Message:      msgSuccess,
		Filename:     name,
		Content:      string(data),
		Extension:    strings.TrimPrefix(ext, "."),
		UploadedDate: info.ModTime().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	writeBody(w, http.StatusOK, body)
}

func (s *Server) updateFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	var req updateRequest
	if err := decodeBody(r, &req); err != nil || req.Content == "" {
		writeMessage(w, http.StatusBadRequest, msgNoContent)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path(name)); errors.Is(err, fs.ErrNotExist) {
		writeMessage(w, http.StatusNotFound, msgNotFound)
		return
	} else if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.WriteFile(s.path(name), []byte(req.Content), 0o644); err != nil {
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeMessage(w, http.StatusOK, msgUpdated)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	s.mu.Lock()
	err := os.Remove(s.path(name))
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		writeMessage(w, http.StatusNotFound, msgNotFound)
		return
	} else if err != nil {
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeMessage(w, http.StatusOK, msgDeleted)
}

func (s *Server) path(name string) string {
	return filepath.Join(s.dir, name)
}

// decodeBody accepts JSON and form-encoded bodies.
func decodeBody(r *http.Request, dst any) error {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return err
		}
		switch v := dst.(type) {
		case *createRequest:
			v.Filename = r.PostForm.Get("filename")
			v.Content = r.PostForm.Get("content")
		case *updateRequest:
			v.Content = r.PostForm.Get("content")
		}
		return nil
	}
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	writeBody(w, status, data)
}

// writeBody encodes data without touching a Content-Type set earlier.
func writeBody(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeMessage writes a {"message": ...} response.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
