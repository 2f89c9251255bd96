package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/agentdeck/agentdeck/pkg/platform"
	"github.com/agentdeck/agentdeck/pkg/telemetry"
)

// threadFilter builds the base listing filter from the inbox config.
// The backend filter takes a single workflow id; with several watched
// workflows the narrowing happens client-side via filterWorkflows.
func (a *app) threadFilter() platform.ThreadFilter {
	filter := platform.ThreadFilter{Limit: 50}
	if len(a.cfg.Inbox.Workflows) == 1 {
		filter.WorkflowID = a.cfg.Inbox.Workflows[0]
	}
	return filter
}

// filterWorkflows keeps only threads running a watched workflow. An
// empty watch list means every workflow.
func filterWorkflows(threads []platform.Thread, watched []string) []platform.Thread {
	if len(watched) == 0 {
		return threads
	}
	ids := make(map[string]bool, len(watched))
	for _, id := range watched {
		ids[id] = true
	}
	var out []platform.Thread
	for _, t := range threads {
		if ids[t.WorkflowID] {
			out = append(out, t)
		}
	}
	return out
}

// runInbox prints the thread listing for the configured view.
func (a *app) runInbox(ctx context.Context) error {
	filter := a.threadFilter()
	if a.cfg.Inbox.DefaultView != "all" {
		status, ok := platform.ParseThreadStatus(a.cfg.Inbox.DefaultView)
		if !ok {
			return fmt.Errorf("unknown view: %s", a.cfg.Inbox.DefaultView)
		}
		filter.Status = status
	}

	threads, total, err := a.platform.ListThreads(ctx, filter)
	if err != nil {
		return err
	}
	threads = filterWorkflows(threads, a.cfg.Inbox.Workflows)

	pending := 0
	for _, t := range threads {
		if t.Status == platform.StatusInterrupted {
			pending++
		}
	}
	telemetry.SetPendingInterrupts(pending)

	if len(threads) == 0 {
		fmt.Println("Inbox empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD\tSTATUS\tACTION\tUPDATED")
	for _, t := range threads {
		action := "-"
		if intr, ok := t.PendingInterrupt(); ok {
			action = intr.ActionRequest.Action
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, action, relTime(t.UpdatedAt))
	}
	w.Flush()

	if total > len(threads) {
		fmt.Printf("\nShowing %d of %d threads.\n", len(threads), total)
	}
	return nil
}

// runResolve marks a thread finished without answering its interrupt.
func (a *app) runResolve(ctx context.Context, threadID string) error {
	sess, err := a.dialThread(ctx, threadID, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	d := a.newDispatcher(nil, sess)
	outcome := d.Resolve(ctx)
	if outcome.Err != nil {
		return outcome.Err
	}
	return nil
}

// runWorkflows lists the workflows threads can run under, marking the
// ones the inbox is configured to watch.
func (a *app) runWorkflows(ctx context.Context) error {
	workflows, err := a.platform.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	if len(workflows) == 0 {
		fmt.Println("No workflows.")
		return nil
	}

	watched := make(map[string]bool, len(a.cfg.Inbox.Workflows))
	for _, id := range a.cfg.Inbox.Workflows {
		watched[id] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WORKFLOW\tNAME\tWATCHED")
	for _, wf := range workflows {
		mark := "yes"
		if len(watched) > 0 && !watched[wf.ID] {
			mark = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", wf.ID, wf.Name, mark)
	}
	return w.Flush()
}

// runInsights lists the cached insight collection.
func (a *app) runInsights(ctx context.Context) error {
	if a.insights == nil {
		return fmt.Errorf("insight cache unavailable")
	}

	all, err := a.insights.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("No saved insights. Run `agentdeck sync` to pull them from the platform.")
		return nil
	}

	for _, in := range all {
		pin := " "
		if in.Pinned {
			pin = "*"
		}
		fmt.Printf("%s %s  %s\n", pin, in.ID, in.Title)
		if in.Body != "" {
			fmt.Printf("    %s\n", in.Body)
		}
	}
	return nil
}

// runSync pushes dirty local insight edits and refreshes the cache.
func (a *app) runSync(ctx context.Context) error {
	if a.insights == nil {
		return fmt.Errorf("insight cache unavailable")
	}
	if err := a.insights.Sync(ctx, a.platform); err != nil {
		return err
	}
	fmt.Println("Insights synced.")
	return nil
}

func relTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
