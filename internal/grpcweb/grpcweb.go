// Package grpcweb implements a minimal grpc-web front end for the
// Instrument service's unary methods (Pause/Resume), translating
// single-message, non-chunked grpc-web framing directly to an
// in-process proto.InstrumentServer call (spec §6.3 "grpc-web is
// accepted for browser clients"). No grpc-web library is present
// anywhere in the retrieval pack (see DESIGN.md), so this is a plain
// net/http handler rather than an adapter over one; it deliberately
// does not attempt the streaming methods, which no browser grpc-web
// client needs for a status-only control surface.
package grpcweb

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/asyncwatch/console/internal/errs"
	"github.com/asyncwatch/console/internal/logging"
	"github.com/asyncwatch/console/proto"
)

const (
	frameData    byte = 0x00
	frameTrailer byte = 0x80
)

// Handler serves grpc-web requests for Pause/Resume directly against
// srv, bypassing grpc.ServiceDesc dispatch entirely.
type Handler struct {
	srv proto.InstrumentServer
}

// NewHandler wraps srv as a grpc-web http.Handler.
func NewHandler(srv proto.InstrumentServer) *Handler { return &Handler{srv: srv} }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/" + proto.ServiceName + "/Pause":
		h.handle(w, r, func() (any, error) { return h.srv.Pause(r.Context(), &proto.PauseRequest{}) })
	case "/" + proto.ServiceName + "/Resume":
		h.handle(w, r, func() (any, error) { return h.srv.Resume(r.Context(), &proto.ResumeRequest{}) })
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, call func() (any, error)) {
	if _, err := readFrame(r.Body); err != nil && err != io.EOF {
		logging.Named("grpcweb").Warnw("malformed request frame", logging.FieldError, err.Error())
		writeStatus(w, 13, "failed to read request frame: "+err.Error())
		return
	}

	resp, err := call()
	if err != nil {
		writeStatus(w, 2, err.Error())
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		writeStatus(w, 13, "marshal response: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/grpc-web+json")
	writeFrame(w, frameData, payload)
	writeStatus(w, 0, "")
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errs.Wrap(err, "read frame payload")
	}
	return payload, nil
}

func writeFrame(w io.Writer, flag byte, payload []byte) {
	var header [5]byte
	header[0] = flag
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	w.Write(header[:])
	w.Write(payload)
}

// writeStatus writes a grpc-web trailer frame carrying grpc-status and
// grpc-message, the only part of a grpc-web response a unary,
// single-message call needs.
func writeStatus(w http.ResponseWriter, code int, message string) {
	trailer := "grpc-status: " + strconv.Itoa(code) + "\r\ngrpc-message: " + message + "\r\n"
	writeFrame(w, frameTrailer, []byte(trailer))
}
