package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/idhash"
	"selfish-mining-lab/internal/observability"
)

// Sweep stream message types.
const (
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageError    = "error"
)

// SweepMessage is one frame of the /ws/sweep stream. The client sends a
// single domain.SweepParams frame; the server answers with progress frames
// and ends with a result or error frame.
type SweepMessage struct {
	Type     string                `json:"type"`
	Progress *domain.SweepProgress `json:"progress,omitempty"`
	Result   *domain.SweepResult   `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
}

type sweepOutcome struct {
	res *domain.SweepResult
	err error
}

func (s *Server) handleSweepStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var body sweepRequest
	if err := conn.ReadJSON(&body); err != nil {
		s.writeFrame(conn, SweepMessage{Type: MessageError, Error: "decode params: " + err.Error()})
		return
	}
	params := s.sweepParams(body)
	sweepID := idhash.ComputeSweepID(params)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before starting so no point is missed.
	progress := make(chan domain.SweepProgress, 16)
	sub := s.driver.SubscribeProgress(progress)
	defer sub.Unsubscribe()
	observability.AddSweepSubscribers(1)
	defer observability.AddSweepSubscribers(-1)

	// Detect client disconnects.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	done := make(chan sweepOutcome, 1)
	go func() {
		res, err := s.driver.ParameterSweep(ctx, params)
		done <- sweepOutcome{res: res, err: err}
	}()

	log := s.log.WithField("sweep_id", sweepID)
	for {
		select {
		case p := <-progress:
			// The driver is shared; other sweeps publish on the same feed.
			if p.SweepID != sweepID {
				continue
			}
			if err := s.writeFrame(conn, SweepMessage{Type: MessageProgress, Progress: &p}); err != nil {
				log.WithError(err).Debug("progress write failed")
				cancel()
				return
			}

		case out := <-done:
			// Every point was delivered before the sweep returned; flush
			// the buffered ones first.
			if err := s.drainProgress(conn, progress, sweepID); err != nil {
				log.WithError(err).Debug("progress write failed")
				return
			}
			if out.err != nil {
				s.writeFrame(conn, SweepMessage{Type: MessageError, Error: out.err.Error()})
				return
			}
			s.persistSweep(ctx, out.res)
			if err := s.writeFrame(conn, SweepMessage{Type: MessageResult, Result: out.res}); err != nil {
				log.WithError(err).Debug("result write failed")
				return
			}
			s.closeNormal(conn)
			return

		case err := <-sub.Err():
			if err != nil {
				log.WithError(err).Warn("progress subscription failed")
			}
			return
		}
	}
}

func (s *Server) drainProgress(conn *websocket.Conn, progress <-chan domain.SweepProgress, sweepID string) error {
	for {
		select {
		case p := <-progress:
			if p.SweepID != sweepID {
				continue
			}
			if err := s.writeFrame(conn, SweepMessage{Type: MessageProgress, Progress: &p}); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, msg SweepMessage) error {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(msg)
}

func (s *Server) closeNormal(conn *websocket.Conn) {
	deadline := time.Now().Add(s.writeTimeout)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
