package idempotency

import (
	"bytes"
	"net/http"
)

// recorder buffers a handler's response so it can be stored before reaching the client.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	return r.body.Write(p)
}

func (r *recorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *recorder) response() Response {
	return Response{Status: r.statusCode(), Headers: r.header, Body: r.body.Bytes()}
}

func (r *recorder) copyTo(w http.ResponseWriter) {
	dst := w.Header()
	for name, values := range r.header {
		dst[name] = values
	}
	w.WriteHeader(r.statusCode())
	_, _ = w.Write(r.body.Bytes())
}
