package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

// Stream message types.
const (
	msgRecord = "record"
	msgBlock  = "block"
	msgDone   = "done"
	msgError  = "error"
)

// streamMsg is one frame sent to a stream client.
type streamMsg struct {
	Type   string         `json:"type"`
	Record *engine.Record `json:"record,omitempty"`
	Block  *scoring.Block `json:"block,omitempty"`
	// Simulation tags ensemble block frames with the run they score.
	Simulation *int   `json:"simulation,omitempty"`
	Seed       uint64 `json:"seed,omitempty"`
	Records    int    `json:"records,omitempty"`
	Error      string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream runs one ensemble or predict request over a WebSocket.
// The first client message is the request. Predict runs send one frame per
// year as it is simulated; ensembles send each run's records once that run
// and every earlier one has finished. Block scores follow, computed per
// run and tagged with the run index for ensembles, then done.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if atomic.AddInt32(&s.streams, 1) > maxStreams {
		atomic.AddInt32(&s.streams, -1)
		http.Error(w, "too many streaming connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streams, -1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	req, err := decodeSimulate(msg)
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad request")
		return
	}
	mode, err := engine.ParseMode(req.Mode)
	if err != nil || (mode != engine.ModeEnsemble && mode != engine.ModePredict) {
		closeWith(conn, websocket.ClosePolicyViolation, "stream supports ensemble and predict modes")
		return
	}
	er, err := s.engineRequest(req, mode)
	if err != nil {
		closeWith(conn, websocket.CloseInternalServerErr, "prepare failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader loop: the client only ever closes. Any read error ends the run.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sink := engine.RecordSinkFunc(func(rec engine.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeFrame(conn, streamMsg{Type: msgRecord, Record: &rec})
	})

	res, err := s.Orch.Run(ctx, er, sink)
	if err != nil {
		slog.Debug("stream run ended", "error", err)
		_ = writeFrame(conn, streamMsg{Type: msgError, Error: err.Error()})
		closeWith(conn, websocket.CloseNormalClosure, "")
		return
	}

	for _, run := range scoring.ByRun(res.Records) {
		sim := run[0].Simulation
		blockSink := blockSinkFunc(func(b scoring.Block) error {
			return writeFrame(conn, streamMsg{Type: msgBlock, Block: &b, Simulation: sim})
		})
		if err := scoring.Deliver(blockSink, scoring.Blocks(run)); err != nil {
			return
		}
	}
	_ = writeFrame(conn, streamMsg{Type: msgDone, Seed: res.Seed, Records: len(res.Records)})
	closeWith(conn, websocket.CloseNormalClosure, "")
}

type blockSinkFunc func(scoring.Block) error

func (f blockSinkFunc) Block(b scoring.Block) error { return f(b) }

func writeFrame(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}
