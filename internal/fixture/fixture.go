// Package fixture serves a local copy of the text-box page and the posts
// endpoint so the full run can be exercised without the public sites.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pinchtab/smoketab/internal/assets"
	"github.com/pinchtab/smoketab/internal/web"
)

type Post struct {
	UserID int    `json:"userId"`
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

var posts = map[int]Post{
	1: {
		UserID: 1,
		ID:     1,
		Title:  "sunt aut facere repellat provident occaecati excepturi optio reprehenderit",
		Body:   "quia et suscipit\nsuscipit recusandae consequuntur expedita et cum\nreprehenderit molestiae ut ut quas totam\nnostrum rerum est autem sunt rem eveniet architecto",
	},
	2: {
		UserID: 1,
		ID:     2,
		Title:  "qui est esse",
		Body:   "est rerum tempore vitae\nsequi sint nihil reprehenderit dolor beatae ea dolores neque",
	},
}

// Server is a loopback HTTP server started by Start.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	done chan error
}

func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /text-box", handleTextBox)
	mux.HandleFunc("GET /posts/{id}", handlePost)
	return loggingMiddleware(mux)
}

func handleTextBox(w http.ResponseWriter, r *http.Request) {
	web.HTML(w, http.StatusOK, assets.TextBoxHTML)
}

func handlePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, fmt.Errorf("invalid post id %q", r.PathValue("id")))
		return
	}
	p, ok := posts[id]
	if !ok {
		web.ErrorCode(w, http.StatusNotFound, "not_found", "post not found", map[string]any{"id": id})
		return
	}
	web.JSON(w, http.StatusOK, p)
}

// Start listens on a random loopback port and serves Handler until Close.
func Start() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("fixture listen: %w", err)
	}
	s := &Server{
		srv: &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:   ln,
		done: make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	slog.Info("fixture server listening", "url", s.URL())
	return s, nil
}

// URL is the base URL without a trailing slash.
func (s *Server) URL() string {
	return "http://" + s.ln.Addr().String()
}

func (s *Server) Close(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("fixture shutdown: %w", err)
	}
	return <-s.done
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		slog.Debug("fixture request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
