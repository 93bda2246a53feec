package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/unrolled/render"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/clock"
)

const maxBodyBytes = 1 << 20

type handler struct {
	backend Backend
	rd      *render.Render
}

type writeRequest struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

type writeResponse struct {
	Status string            `json:"status"`
	ID     string            `json:"id"`
	VC     clock.VectorClock `json:"vc"`
}

type readResponse struct {
	Value  *string           `json:"value"`
	Origin string            `json:"origin,omitempty"`
	VC     clock.VectorClock `json:"vc"`
}

type replicateRequest struct {
	ID     string            `json:"id"`
	Sender string            `json:"sender"`
	Key    string            `json:"key"`
	Value  *string           `json:"value"`
	VC     clock.VectorClock `json:"vc"`
}

type statusResponse struct {
	NodeID               string            `json:"node_id"`
	VC                   clock.VectorClock `json:"vc"`
	Keys                 int               `json:"keys"`
	Pending              int               `json:"pending"`
	OldestPendingSeconds float64           `json:"oldest_pending_seconds"`
	Applied              uint64            `json:"applied"`
	Buffered             uint64            `json:"buffered"`
	Duplicates           uint64            `json:"duplicates"`
}

type pendingEntry struct {
	ID        string            `json:"id"`
	Sender    string            `json:"sender"`
	Key       string            `json:"key"`
	Value     string            `json:"value"`
	VC        clock.VectorClock `json:"vc"`
	ArrivedAt string            `json:"arrived_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	var input writeRequest
	if !h.readJSON(w, r, &input) {
		return
	}
	input.Key = mux.Vars(r)["key"]
	h.doWrite(w, input)
}

func (h *handler) write(w http.ResponseWriter, r *http.Request) {
	var input writeRequest
	if !h.readJSON(w, r, &input) {
		return
	}
	h.doWrite(w, input)
}

func (h *handler) doWrite(w http.ResponseWriter, input writeRequest) {
	if input.Value == nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse{Error: "value is required"})
		return
	}
	res, err := h.backend.Write(input.Key, *input.Value)
	if err != nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.rd.JSON(w, http.StatusOK, writeResponse{Status: "ok", ID: res.Message.ID, VC: res.Clock})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	h.doRead(w, mux.Vars(r)["key"])
}

func (h *handler) read(w http.ResponseWriter, r *http.Request) {
	h.doRead(w, r.URL.Query().Get("key"))
}

func (h *handler) doRead(w http.ResponseWriter, key string) {
	res, err := h.backend.Read(key)
	if err != nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	out := readResponse{VC: res.Clock}
	if res.Found {
		out.Value = &res.Value
		out.Origin = res.Origin
	}
	h.rd.JSON(w, http.StatusOK, out)
}

func (h *handler) replicate(w http.ResponseWriter, r *http.Request) {
	var input replicateRequest
	if !h.readJSON(w, r, &input) {
		return
	}
	if input.Value == nil || input.VC == nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse{Error: "sender, key, value and vc are required"})
		return
	}
	msg := causal.Message{
		ID:     input.ID,
		Sender: input.Sender,
		Key:    input.Key,
		Value:  *input.Value,
		Clock:  input.VC,
	}
	if _, err := h.backend.Replicate(msg); err != nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.rd.JSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	s := h.backend.Stats()
	h.rd.JSON(w, http.StatusOK, statusResponse{
		NodeID:               s.NodeID,
		VC:                   s.Clock,
		Keys:                 s.Keys,
		Pending:              s.Pending,
		OldestPendingSeconds: s.OldestPending.Seconds(),
		Applied:              s.Applied,
		Buffered:             s.Buffered,
		Duplicates:           s.Duplicates,
	})
}

func (h *handler) pending(w http.ResponseWriter, r *http.Request) {
	entries := h.backend.Pending()
	out := make([]pendingEntry, 0, len(entries))
	for _, p := range entries {
		out = append(out, pendingEntry{
			ID:        p.Message.ID,
			Sender:    p.Message.Sender,
			Key:       p.Message.Key,
			Value:     p.Message.Value,
			VC:        p.Message.Clock,
			ArrivedAt: p.ArrivedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	h.rd.JSON(w, http.StatusOK, out)
}

// readJSON decodes the request body into data, writing a 400 on failure.
func (h *handler) readJSON(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.rd.JSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return false
	}
	if err := json.Unmarshal(body, data); err != nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse{Error: errors.Wrap(err, "invalid JSON body").Error()})
		return false
	}
	return true
}
