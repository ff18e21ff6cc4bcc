package handler

import (
	"net/http"
	"strconv"
)

type failResponse struct {
	err error
}

// Render returns the wrapped error so Wrap hands it to the error handler.
func (f failResponse) Render(http.ResponseWriter, *http.Request) error {
	return f.err
}

// Fail creates a response that is rendered by the route's error handler,
// which maps and logs err.
func Fail(err error) Response {
	return failResponse{err: err}
}

type blobResponse struct {
	contentType string
	data        []byte
	headers     http.Header
}

func (b blobResponse) Render(w http.ResponseWriter, r *http.Request) error {
	for k, v := range b.headers {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Type", b.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.data)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(b.data)
	return err
}

// Blob creates a 200 response with a raw body, such as a rendered image.
func Blob(contentType string, data []byte, headers ...http.Header) Response {
	b := blobResponse{contentType: contentType, data: data, headers: http.Header{}}
	for _, h := range headers {
		for k, v := range h {
			b.headers[k] = v
		}
	}
	return b
}
