package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	reply     string
	turnErr   error
	state     SessionState
	snapErr   error
	cleared   []string
	modes     map[string]string
	lastInput string
}

func (f *fakeService) HandleTurn(_ context.Context, sessionID, userText string) (string, error) {
	f.lastInput = userText
	if f.turnErr != nil {
		return "", f.turnErr
	}
	return f.reply, nil
}

func (f *fakeService) Snapshot(_ context.Context, sessionID string) (SessionState, error) {
	if f.snapErr != nil {
		return SessionState{}, f.snapErr
	}
	state := f.state
	state.SessionID = sessionID
	return state, nil
}

func (f *fakeService) SetMode(_ context.Context, sessionID, mode string) error {
	if f.modes == nil {
		f.modes = map[string]string{}
	}
	f.modes[sessionID] = mode
	return nil
}

func (f *fakeService) ClearSession(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Post("/sessions/{sessionID}/messages", h.Message)
	r.Get("/sessions/{sessionID}", h.State)
	r.Delete("/sessions/{sessionID}", h.Clear)
	return r
}

func TestHandlerMessage(t *testing.T) {
	svc := &fakeService{
		reply: "Happy to help!",
		state: SessionState{Stage: "greeting", Mode: "SDR"},
	}
	h := NewHandler(svc, nil, "")
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions/abc/messages", "application/json",
		strings.NewReader(`{"message": "hello there"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out turnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "abc", out.SessionID)
	require.Equal(t, "Happy to help!", out.Reply)
	require.Equal(t, "greeting", out.Stage)
	require.Equal(t, "hello there", svc.lastInput)
}

func TestHandlerMessageValidation(t *testing.T) {
	h := NewHandler(&fakeService{}, nil, "")
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions/abc/messages", "application/json",
		strings.NewReader(`{"message": "   "}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/sessions/abc/messages", "application/json",
		strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerMessageGenerationFailure(t *testing.T) {
	svc := &fakeService{turnErr: ErrGeneration}
	h := NewHandler(svc, nil, "")
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions/abc/messages", "application/json",
		strings.NewReader(`{"message": "hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHandlerMessageKeepsReplyOnSnapshotFailure(t *testing.T) {
	svc := &fakeService{reply: "Noted!", snapErr: errors.New("store offline")}
	h := NewHandler(svc, nil, "")
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions/abc/messages", "application/json",
		strings.NewReader(`{"message": "hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out turnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "Noted!", out.Reply)
	require.Empty(t, out.Stage)
}

func TestHandlerCreateSession(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, nil, "SDR")
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions", "application/json",
		strings.NewReader(`{"mode": "CLOSER"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	require.Equal(t, "CLOSER", out.Mode)
	require.Equal(t, "CLOSER", svc.modes[out.SessionID])
}

func TestHandlerCreateSessionEmptyBody(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, nil, "SDR")
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "SDR", out.Mode)
}

func TestHandlerStateAndClear(t *testing.T) {
	svc := &fakeService{state: SessionState{Stage: "solution", TurnsInStage: 2, ValuePresented: true}}
	h := NewHandler(svc, nil, "")
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.Equal(t, "abc", state.SessionID)
	require.Equal(t, "solution", state.Stage)
	require.True(t, state.ValuePresented)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/abc", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)
	require.Equal(t, []string{"abc"}, svc.cleared)
}
