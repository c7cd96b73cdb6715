// Package viewer exposes a small HTTP surface over a running simulation:
// a websocket stream of the trace log every node produces through its
// EventHandler, and a JSON snapshot of each node's metrics.Recorder.
// Modeled on the teacher's node service's public handlers, trimmed to
// the two endpoints this simulator actually needs.
package viewer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ezchain-labs/ezchain-sim/foundation/events"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
)

// NodeSnapshot is one node's metrics, as reported to /v1/metrics.
type NodeSnapshot struct {
	Node           string           `json:"node"`
	Errors         map[metrics.Kind]int `json:"errors"`
	MeanCCPTNanos  float64          `json:"mean_ccpt_nanos"`
	ACStorageBytes int64            `json:"ac_storage_bytes"`
	CCStorageBytes int64            `json:"cc_storage_bytes"`
}

// SnapshotFunc is supplied by the caller (cmd/ezchain-sim) since the
// viewer package has no knowledge of the running node set itself.
type SnapshotFunc func() []NodeSnapshot

// Config bundles the viewer's collaborators.
type Config struct {
	Log      *zap.SugaredLogger
	Evts     *events.Tracer
	Snapshot SnapshotFunc
}

// Mux builds the viewer's route table.
func Mux(cfg Config) *httptreemux.ContextMux {
	h := handlers{cfg: cfg, upgrader: websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}}

	mux := httptreemux.NewContextMux()
	mux.Handle(http.MethodGet, "/v1/events", h.events)
	mux.Handle(http.MethodGet, "/v1/metrics", h.metrics)
	return mux
}

type handlers struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// events upgrades to a websocket and relays every trace line produced
// by the simulation, pinging idle connections to detect drops.
func (h handlers) events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.cfg.Log.Errorw("viewer: websocket upgrade", "ERROR", err)
		return
	}
	defer conn.Close()

	id := r.RemoteAddr
	ch := h.cfg.Evts.Subscribe(id)
	defer h.cfg.Evts.Unsubscribe(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case tr, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tr.Message)); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// metrics returns the current per-node metrics snapshot as JSON.
func (h handlers) metrics(w http.ResponseWriter, r *http.Request) {
	snap := h.cfg.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.cfg.Log.Errorw("viewer: encode metrics", "ERROR", err)
	}
}
