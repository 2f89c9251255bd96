package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentdeck/agentdeck/pkg/api"
	"github.com/agentdeck/agentdeck/pkg/interrupt"
	"github.com/agentdeck/agentdeck/pkg/logging"
	"github.com/agentdeck/agentdeck/pkg/platform"
	"github.com/agentdeck/agentdeck/pkg/session"
	"github.com/agentdeck/agentdeck/pkg/telemetry"
)

const pollInterval = 15 * time.Second

// runServe runs the daemon: poll for interrupted threads, keep the
// store loaded with the oldest pending decision, and expose everything
// over the local API so other surfaces can act on it.
func (a *app) runServe(ctx context.Context) error {
	store := interrupt.NewStore(a.logger)

	watcher := &threadWatcher{
		app:   a,
		store: store,
	}

	server := api.NewServer(api.Config{
		Address:    a.cfg.API.Bind,
		Store:      store,
		Dispatcher: a.newDispatcher(store, watcher),
		Platform:   a.platform,
		Insights:   a.insights,
		Logger:     a.logger,
	})

	fmt.Printf("agentdeck daemon listening on %s\n", a.cfg.API.Bind)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(func() error {
		return watcher.run(ctx)
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// threadWatcher polls the platform for interrupted threads, loads the
// oldest one into the store, and lazily dials its run stream the first
// time a decision is submitted.
type threadWatcher struct {
	app   *app
	store *interrupt.Store

	mu       sync.Mutex
	threadID string
	sess     *session.StreamSession
}

func (w *threadWatcher) run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.closeSession()
			w.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *threadWatcher) poll(ctx context.Context) {
	filter := w.app.threadFilter()
	filter.Status = platform.StatusInterrupted
	threads, _, err := w.app.platform.ListThreads(ctx, filter)
	if err != nil {
		w.app.logger.Error(logging.CategorySession, "poll_failed", err, map[string]any{
			"operation": "poll",
			"component": "thread_watcher",
		})
		return
	}
	threads = filterWorkflows(threads, w.app.cfg.Inbox.Workflows)
	telemetry.SetPendingInterrupts(len(threads))

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(threads) == 0 {
		if w.threadID != "" {
			w.store.Clear()
			w.threadID = ""
			w.closeSession()
		}
		return
	}

	// Oldest first so decisions are made in arrival order.
	oldest := threads[0]
	for _, t := range threads[1:] {
		if t.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = t
		}
	}
	if oldest.ID == w.threadID {
		return
	}

	intr, ok := oldest.PendingInterrupt()
	if !ok {
		return
	}
	w.closeSession()
	w.threadID = oldest.ID
	w.store.Initialize(intr)
	w.app.logger.Info(logging.CategoryInterrupt, "thread_loaded", "", map[string]any{
		"thread_id": oldest.ID,
		"action":    intr.ActionRequest.Action,
	})
}

// Submit implements session.Session, dialing the current thread's
// stream on first use.
func (w *threadWatcher) Submit(ctx context.Context, state map[string]any, cmd session.Command) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.threadID == "" {
		return false, fmt.Errorf("no thread loaded")
	}
	if w.sess == nil {
		sess, err := w.app.dialThread(ctx, w.threadID, w.store)
		if err != nil {
			return false, err
		}
		w.sess = sess
	}
	ok, err := w.sess.Submit(ctx, state, cmd)
	if err == nil {
		// The decision ends this thread's review; the next poll loads
		// the next one.
		w.closeSession()
		w.threadID = ""
	}
	return ok, err
}

// closeSession releases the stream. Caller holds mu.
func (w *threadWatcher) closeSession() {
	if w.sess != nil {
		w.sess.Close()
		w.sess = nil
	}
}
