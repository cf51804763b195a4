package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"termrt/internal/apperr"
	"termrt/internal/editor"
	"termrt/internal/facade"
	"termrt/internal/registry"
)

// Server exposes a JSON HTTP API over the terminal sessions and editor
// buffers, plus the WebSocket upgrade in ws.go. Routing follows
// ehrlich-b-wingthing's net/http.ServeMux + method-pattern style (no
// third-party router).
type Server struct {
	facade *facade.Facade
	editor *editor.Store
	log    *logrus.Logger
	mux    *http.ServeMux
}

// NewServer wires a Server over an already-constructed façade and editor
// store.
func NewServer(f *facade.Facade, ed *editor.Store, log *logrus.Logger) *Server {
	s := &Server{facade: f, editor: ed, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /terminals", s.handleListTerminals)
	s.mux.HandleFunc("POST /terminals", s.handleCreateTerminal)
	s.mux.HandleFunc("GET /terminals/{id}", s.handleGetTerminal)
	s.mux.HandleFunc("GET /terminals/by-name/{name}", s.handleGetTerminalByName)
	s.mux.HandleFunc("DELETE /terminals/{id}", s.handleKillTerminal)
	s.mux.HandleFunc("POST /terminals/{id}/exec", s.handleExec)
	s.mux.HandleFunc("POST /terminals/by-name/{name}/exec", s.handleExecByName)
	s.mux.HandleFunc("POST /terminals/{id}/exec/wait", s.handleExecWait)
	s.mux.HandleFunc("POST /terminals/{id}/write", s.handleWrite)
	s.mux.HandleFunc("POST /terminals/{id}/resize", s.handleResize)
	s.mux.HandleFunc("GET /terminals/{id}/buffer", s.handleGetBuffer)
	s.mux.HandleFunc("DELETE /terminals/{id}/buffer", s.handleFlushBuffer)
	s.mux.HandleFunc("GET /ws/terminal/{id}", s.handleStream)

	s.mux.HandleFunc("POST /editor/open", s.handleEditorOpen)
	s.mux.HandleFunc("POST /editor/save", s.handleEditorSave)
	s.mux.HandleFunc("GET /editor/buffers", s.handleEditorList)
	s.mux.HandleFunc("GET /editor/buffers/{id}", s.handleEditorGet)
	s.mux.HandleFunc("PUT /editor/buffers/{id}", s.handleEditorUpdate)
	s.mux.HandleFunc("DELETE /editor/buffers/{id}", s.handleEditorClose)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// --- wire shapes ---

type statusWire struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type sessionWire struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CWD       string     `json:"cwd"`
	Shell     string     `json:"shell"`
	Cols      uint16     `json:"cols"`
	Rows      uint16     `json:"rows"`
	CreatedAt time.Time  `json:"created_at"`
	Status    statusWire `json:"status"`
	Pid       int        `json:"pid"`
	ExitCode  *int       `json:"exit_code,omitempty"`
}

func toSessionWire(s registry.Session) sessionWire {
	sw := sessionWire{
		ID: s.ID, Name: s.Name, CWD: s.CWD, Shell: s.Shell,
		Cols: s.Cols, Rows: s.Rows, CreatedAt: s.CreatedAt,
		Pid: s.Pid, ExitCode: s.ExitCode,
		Status: statusWire{State: string(s.Status)},
	}
	if s.Status == registry.StatusError {
		sw.Status.Message = s.ErrorMsg
	}
	return sw
}

type bufferWire struct {
	ID        string `json:"id"`
	Path      string `json:"path,omitempty"`
	Name      string `json:"name"`
	Language  string `json:"language"`
	Modified  bool   `json:"modified"`
	LineCount int    `json:"line_count"`
}

func toBufferWire(b editor.Buffer) bufferWire {
	return bufferWire{
		ID: b.ID, Path: b.Path, Name: b.Name,
		Language: b.Language, Modified: b.Modified, LineCount: b.LineCount,
	}
}

// --- terminal handlers ---

func (s *Server) handleListTerminals(w http.ResponseWriter, r *http.Request) {
	sessions := s.facade.List()
	wire := make([]sessionWire, len(sessions))
	for i, sess := range sessions {
		wire[i] = toSessionWire(sess)
	}
	writeJSON(w, http.StatusOK, map[string]any{"terminals": wire, "count": len(wire)})
}

type createTerminalBody struct {
	Name  string            `json:"name"`
	CWD   string            `json:"cwd,omitempty"`
	Shell string            `json:"shell,omitempty"`
	Cols  uint16            `json:"cols,omitempty"`
	Rows  uint16            `json:"rows,omitempty"`
	Env   map[string]string `json:"env,omitempty"`
}

func (s *Server) handleCreateTerminal(w http.ResponseWriter, r *http.Request) {
	var body createTerminalBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.facade.Create(facade.CreateRequest{
		Name: body.Name, CWD: body.CWD, Shell: body.Shell,
		Cols: body.Cols, Rows: body.Rows, Env: body.Env,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionWire(*sess))
}

func (s *Server) handleGetTerminal(w http.ResponseWriter, r *http.Request) {
	sess, err := s.facade.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionWire(*sess))
}

func (s *Server) handleGetTerminalByName(w http.ResponseWriter, r *http.Request) {
	sess, err := s.facade.GetByName(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionWire(*sess))
}

func (s *Server) handleKillTerminal(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.Kill(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type execBody struct {
	Command string `json:"command"`
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var body execBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.Exec(r.PathValue("id"), body.Command); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleExecByName(w http.ResponseWriter, r *http.Request) {
	var body execBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.ExecByName(r.PathValue("name"), body.Command); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type execWaitBody struct {
	Command   string `json:"command"`
	TimeoutMs *int   `json:"timeout_ms,omitempty"`
}

func (s *Server) handleExecWait(w http.ResponseWriter, r *http.Request) {
	var body execWaitBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.facade.ExecWait(r.PathValue("id"), body.Command, body.TimeoutMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"output": res.Output, "duration_ms": res.DurationMs})
}

type writeBody struct {
	Data string `json:"data"`
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var body writeBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.facade.Write(r.PathValue("id"), []byte(body.Data)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resizeBody struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var body resizeBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.facade.Resize(r.PathValue("id"), body.Cols, body.Rows); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBuffer(w http.ResponseWriter, r *http.Request) {
	var linesPtr *int
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperr.BadRequestf("invalid lines query parameter %q", raw))
			return
		}
		linesPtr = &n
	}
	res, err := s.facade.GetBuffer(r.PathValue("id"), linesPtr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": res.Lines, "total": res.Total})
}

func (s *Server) handleFlushBuffer(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.FlushBuffer(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- editor handlers ---

type editorOpenBody struct {
	Path string `json:"path"`
}

func (s *Server) handleEditorOpen(w http.ResponseWriter, r *http.Request) {
	var body editorOpenBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	buf, err := s.editor.Open(body.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBufferWire(*buf))
}

type editorSaveBody struct {
	ID string `json:"id"`
}

func (s *Server) handleEditorSave(w http.ResponseWriter, r *http.Request) {
	var body editorSaveBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.editor.Save(body.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditorList(w http.ResponseWriter, r *http.Request) {
	bufs := s.editor.List()
	wire := make([]bufferWire, len(bufs))
	for i, b := range bufs {
		wire[i] = toBufferWire(b)
	}
	writeJSON(w, http.StatusOK, wire)
}

func (s *Server) handleEditorGet(w http.ResponseWriter, r *http.Request) {
	content, err := s.editor.GetContent(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

type editorUpdateBody struct {
	Content string `json:"content"`
}

func (s *Server) handleEditorUpdate(w http.ResponseWriter, r *http.Request) {
	var body editorUpdateBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.editor.SetContent(r.PathValue("id"), body.Content); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditorClose(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
