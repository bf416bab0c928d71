package grpcweb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyncwatch/console/proto"
)

// stubServer implements proto.InstrumentServer directly; Handler calls
// it in-process, so no grpc.ServiceDesc plumbing is needed to test it.
type stubServer struct {
	proto.UnimplementedInstrumentServer
	pauseCalled bool
	resumeErr   error
}

func (s *stubServer) Pause(context.Context, *proto.PauseRequest) (*proto.PauseResponse, error) {
	s.pauseCalled = true
	return &proto.PauseResponse{}, nil
}

func (s *stubServer) Resume(context.Context, *proto.ResumeRequest) (*proto.ResumeResponse, error) {
	if s.resumeErr != nil {
		return nil, s.resumeErr
	}
	return &proto.ResumeResponse{}, nil
}

type stubErr struct{ msg string }

func (e stubErr) Error() string { return e.msg }

func requestFrame(payload []byte) []byte {
	var header [5]byte
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	return append(header[:], payload...)
}

func splitFrames(t *testing.T, body []byte) (dataFlag byte, dataPayload []byte, trailer string) {
	t.Helper()
	require.GreaterOrEqual(t, len(body), 5)
	dataFlag = body[0]
	length := binary.BigEndian.Uint32(body[1:5])
	dataPayload = body[5 : 5+length]

	rest := body[5+length:]
	require.GreaterOrEqual(t, len(rest), 5)
	trailerLen := binary.BigEndian.Uint32(rest[1:5])
	trailer = string(rest[5 : 5+trailerLen])
	return
}

func TestServeHTTPPauseReturnsDataAndTrailerFrames(t *testing.T) {
	srv := &stubServer{}
	h := NewHandler(srv)

	req := httptest.NewRequest(http.MethodPost, "/"+proto.ServiceName+"/Pause", strings.NewReader(string(requestFrame(nil))))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.True(t, srv.pauseCalled)
	flag, payload, trailer := splitFrames(t, rec.Body.Bytes())
	assert.Equal(t, frameData, flag)
	assert.Contains(t, trailer, "grpc-status: 0")

	var resp proto.PauseResponse
	require.NoError(t, json.Unmarshal(payload, &resp))
}

func TestServeHTTPUnknownMethodIs404(t *testing.T) {
	h := NewHandler(&stubServer{})
	req := httptest.NewRequest(http.MethodPost, "/"+proto.ServiceName+"/Explode", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPPropagatesServerError(t *testing.T) {
	h := NewHandler(&stubServer{resumeErr: stubErr{"boom"}})
	req := httptest.NewRequest(http.MethodPost, "/"+proto.ServiceName+"/Resume", strings.NewReader(string(requestFrame(nil))))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	// An error response is trailers-only: a single trailer frame, no data frame.
	body := rec.Body.Bytes()
	require.GreaterOrEqual(t, len(body), 5)
	assert.Equal(t, frameTrailer, body[0])
	trailerLen := binary.BigEndian.Uint32(body[1:5])
	require.Equal(t, int(trailerLen), len(body)-5)
	trailer := string(body[5:])
	assert.Contains(t, trailer, "boom")
	assert.NotContains(t, trailer, "grpc-status: 0")
}
