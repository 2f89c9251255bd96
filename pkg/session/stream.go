package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/agentdeck/agentdeck/pkg/auth"
	"github.com/agentdeck/agentdeck/pkg/errors"
	"github.com/agentdeck/agentdeck/pkg/logging"
	"github.com/agentdeck/agentdeck/pkg/notify"
	"github.com/agentdeck/agentdeck/pkg/telemetry"
)

const (
	writeTimeout = 10 * time.Second
	ackTimeout   = 30 * time.Second
	pingInterval = 25 * time.Second
)

// submitFrame is the client→server submission envelope.
type submitFrame struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"` // always "submit"
	ThreadID string         `json:"thread_id"`
	State    map[string]any `json:"state,omitempty"`
	Command  Command        `json:"command"`
}

// serverFrame is the server→client envelope: either an ack for a
// submission (ID set) or an async run event.
type serverFrame struct {
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Code  string `json:"code,omitempty"`
	Event *Event `json:"event,omitempty"`
}

// run-not-found ack code; the backend has already published a
// user-facing message for this case.
const codeRunNotFound = "run_not_found"

// StreamSession is a websocket-backed Session bound to one thread.
type StreamSession struct {
	endpoint string
	threadID string
	tokens   auth.TokenSource
	handler  Handler
	notifier notify.Notifier
	logger   *logging.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan serverFrame
	closed  bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// StreamOptions configures a StreamSession.
type StreamOptions struct {
	Endpoint string
	ThreadID string
	Tokens   auth.TokenSource
	Handler  Handler
	Notifier notify.Notifier
	Logger   *logging.Logger
}

// Dial connects to the run stream for one thread.
func Dial(ctx context.Context, opts StreamOptions) (*StreamSession, error) {
	if opts.Endpoint == "" || opts.ThreadID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "stream endpoint and thread ID are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}

	header := http.Header{}
	if opts.Tokens != nil {
		token, err := opts.Tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	url := fmt.Sprintf("%s?thread_id=%s", opts.Endpoint, opts.ThreadID)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		wrapped := errors.Wrap(err, errors.ErrCodeSessionDial, "dial run stream").
			WithContext("endpoint", opts.Endpoint).
			WithRetryable(true)
		if resp != nil {
			wrapped = wrapped.WithContext("status", resp.StatusCode)
		}
		return nil, wrapped
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, runCtx := errgroup.WithContext(runCtx)

	s := &StreamSession{
		endpoint: opts.Endpoint,
		threadID: opts.ThreadID,
		tokens:   opts.Tokens,
		handler:  opts.Handler,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		conn:     conn,
		pending:  make(map[string]chan serverFrame),
		group:    group,
		cancel:   cancel,
	}

	group.Go(func() error { return s.readLoop(runCtx) })
	group.Go(func() error { return s.pingLoop(runCtx) })

	s.logger.Info(logging.CategorySession, "stream_connected", "", map[string]any{
		"thread_id": opts.ThreadID,
	})
	return s, nil
}

// Submit implements Session. It delivers the command and waits for the
// backend's ack.
func (s *StreamSession) Submit(ctx context.Context, state map[string]any, cmd Command) (bool, error) {
	frame := submitFrame{
		ID:       uuid.NewString(),
		Type:     "submit",
		ThreadID: s.threadID,
		State:    state,
		Command:  cmd,
	}

	ackCh := make(chan serverFrame, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, errors.New(errors.ErrCodeSessionClosed, "stream session is closed").
			WithContext("thread_id", s.threadID)
	}
	s.pending[frame.ID] = ackCh
	conn := s.conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, frame.ID)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(frame)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "encode submit frame")
	}

	s.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.mu.Unlock()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSubmitFailed, "write submit frame").
			WithContext("thread_id", s.threadID).
			WithRetryable(true)
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		if ack.OK {
			return true, nil
		}
		if ack.Code == codeRunNotFound {
			// The backend already surfaced this to the operator.
			s.notifier.Error("Run not found", "The agent run for this thread no longer exists")
			return false, nil
		}
		return false, errors.New(errors.ErrCodeSubmitFailed, "backend rejected submission").
			WithContext("code", ack.Code).
			WithContext("thread_id", s.threadID)
	case <-timer.C:
		return false, errors.New(errors.ErrCodeSessionTimeout, "timed out waiting for submit ack").
			WithContext("thread_id", s.threadID).
			WithRetryable(true)
	case <-ctx.Done():
		return false, errors.Wrap(ctx.Err(), errors.ErrCodeSessionClosed, "submit cancelled")
	}
}

func (s *StreamSession) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error(logging.CategorySession, "stream_read_failed", err, map[string]any{
				"thread_id": s.threadID,
			})
			telemetry.RecordSessionReconnect()
			return err
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn(logging.CategorySession, "stream_bad_frame", err.Error(), nil)
			continue
		}

		if frame.ID != "" {
			s.mu.Lock()
			ackCh, ok := s.pending[frame.ID]
			s.mu.Unlock()
			if ok {
				select {
				case ackCh <- frame:
				default:
				}
			}
			continue
		}

		if frame.Event != nil && s.handler != nil {
			s.handler(*frame.Event)
		}
	}
}

func (s *StreamSession) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.mu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				return err
			}
		}
	}
}

// ThreadID returns the thread this session is bound to.
func (s *StreamSession) ThreadID() string {
	return s.threadID
}

// Close tears down the stream.
func (s *StreamSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	err := s.conn.Close()
	s.group.Wait()
	return err
}
