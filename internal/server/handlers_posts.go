package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"imgpost/internal/api"
	"imgpost/internal/blobstore"
)

const (
	defaultMaxUploadBytes = 50 << 20 // 50 MiB
	multipartMemory       = 8 << 20  // 8 MiB
)

// postForm is a decoded create or update request. Close releases the opened
// upload parts and any spooled temp files.
type postForm struct {
	input   PostInput
	files   []blobstore.File
	closers []io.Closer
	cleanup func()
}

func (f *postForm) Close() {
	for _, c := range f.closers {
		_ = c.Close()
	}
	if f.cleanup != nil {
		f.cleanup()
	}
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.service.ListAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	post, err := s.service.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	form, err := s.parsePostForm(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer form.Close()

	post, err := s.service.Create(r.Context(), form.input, form.files)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	form, err := s.parsePostForm(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer form.Close()

	post, err := s.service.Update(r.Context(), id, form.input, form.files)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	password, err := s.deletePassword(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.service.Delete(r.Context(), id, password); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PostDeleteResponse{ID: id})
}

// parsePostForm reads multipart fields and the "images" file parts. Tags may
// be repeated or comma separated.
func (s *Server) parsePostForm(w http.ResponseWriter, r *http.Request) (*postForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) || requestMediaType(r) != "application/x-www-form-urlencoded" {
			return nil, classifyFormError(err)
		}
	}

	form := &postForm{
		input: PostInput{
			Author:   r.PostFormValue("author"),
			Title:    r.PostFormValue("title"),
			Content:  r.PostFormValue("content"),
			Password: r.PostFormValue("password"),
		},
	}
	for _, raw := range r.PostForm["tags"] {
		form.input.Tags = append(form.input.Tags, splitCSV(raw)...)
	}

	if r.MultipartForm == nil {
		return form, nil
	}
	multipartForm := r.MultipartForm
	form.cleanup = func() { _ = multipartForm.RemoveAll() }

	for _, header := range multipartForm.File["images"] {
		f, err := header.Open()
		if err != nil {
			form.Close()
			return nil, badRequestCode(fmt.Errorf("open upload %q: %w", header.Filename, err), ErrCodeInvalidMultipart)
		}
		form.closers = append(form.closers, f)
		form.files = append(form.files, blobstore.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        f,
		})
	}
	return form, nil
}

func (s *Server) deletePassword(w http.ResponseWriter, r *http.Request) (string, error) {
	if password := r.Header.Get(api.PasswordHeader); password != "" {
		return password, nil
	}

	switch requestMediaType(r) {
	case "application/json":
		var req api.PostDeleteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return "", classifyDecodeJSONError(err)
		}
		return req.Password, nil
	case "application/x-www-form-urlencoded":
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, defaultJSONMaxBody))
		if err != nil {
			return "", classifyFormError(err)
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return "", badRequestCode(fmt.Errorf("invalid form body: %w", err), ErrCodeInvalidMultipart)
		}
		return values.Get("password"), nil
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return "", classifyFormError(err)
		}
		defer r.MultipartForm.RemoveAll()
		if values := r.MultipartForm.Value["password"]; len(values) > 0 {
			return values[0], nil
		}
		return "", nil
	default:
		return "", nil
	}
}

func classifyFormError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(fmt.Errorf("invalid multipart form: %w", err), ErrCodeInvalidMultipart)
}

func requestMediaType(r *http.Request) string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}
