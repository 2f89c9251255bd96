package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agentdeck/agentdeck/pkg/interrupt"
	"github.com/agentdeck/agentdeck/pkg/session"
)

// dialThread opens the run stream for one thread. The optional store
// has its streaming flag cleared when the run finishes or fails.
func (a *app) dialThread(ctx context.Context, threadID string, store *interrupt.Store) (*session.StreamSession, error) {
	var handler session.Handler
	if store != nil {
		handler = func(ev session.Event) {
			switch ev.Type {
			case session.EventEnd, session.EventError:
				store.SetStreaming(false)
			}
		}
	}
	return session.Dial(ctx, session.StreamOptions{
		Endpoint: a.cfg.StreamEndpoint(),
		ThreadID: threadID,
		Tokens:   a.tokens,
		Handler:  handler,
		Notifier: a.notifier,
		Logger:   a.logger,
	})
}

func (a *app) newDispatcher(store *interrupt.Store, sess session.Session) *interrupt.Dispatcher {
	if store == nil {
		store = interrupt.NewStore(a.logger)
	}
	return interrupt.NewDispatcher(store, sess, a.notifier, a.logger)
}

// runReview fetches a paused thread and walks the operator through the
// decision: show the proposed action, take edits or a reply, submit.
func (a *app) runReview(ctx context.Context, threadID string) error {
	thread, err := a.platform.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	intr, ok := thread.PendingInterrupt()
	if !ok {
		return fmt.Errorf("thread %s has no pending interrupt (status: %s)", threadID, thread.Status)
	}

	store := interrupt.NewStore(a.logger)
	store.Initialize(intr)
	if store.Empty() {
		return fmt.Errorf("thread %s carries an interrupt this client cannot act on", threadID)
	}

	sess, err := a.dialThread(ctx, threadID, store)
	if err != nil {
		return err
	}
	defer sess.Close()

	d := a.newDispatcher(store, sess)
	r := &reviewLoop{
		app:        a,
		store:      store,
		dispatcher: d,
		in:         bufio.NewScanner(os.Stdin),
		threadID:   threadID,
	}
	return r.run(ctx, intr)
}

type reviewLoop struct {
	app        *app
	store      *interrupt.Store
	dispatcher *interrupt.Dispatcher
	in         *bufio.Scanner
	threadID   string
}

func (r *reviewLoop) run(ctx context.Context, intr *interrupt.Interrupt) error {
	r.printInterrupt(intr)

	for {
		r.printPrompt()
		if !r.in.Scan() {
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "submit", "s":
			selected, ok := r.store.SelectedSubmitType()
			if !ok {
				fmt.Println("Nothing to submit yet.")
				continue
			}
			outcome := r.dispatcher.Submit(ctx, r.store.Responses(), selected)
			r.recordDecision(intr, string(selected), outcome)
			if outcome.Status == interrupt.OutcomeSubmitted {
				return nil
			}
		case "edit", "e":
			r.editField(arg)
		case "respond", "r":
			if err := r.store.UpdateResponse(arg); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		case "reset":
			edit, ok := interrupt.FindByType(r.store.Responses(), interrupt.TypeEdit)
			if !ok {
				fmt.Println("No editable action on this interrupt.")
				continue
			}
			if err := r.store.ResetEdits(edit); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		case "ignore", "i":
			outcome := r.dispatcher.Ignore(ctx, r.store.Responses())
			r.recordDecision(intr, "ignore", outcome)
			if outcome.Status == interrupt.OutcomeSubmitted || outcome.Status == interrupt.OutcomeHandled {
				return nil
			}
		case "resolve":
			outcome := r.dispatcher.Resolve(ctx)
			r.recordDecision(intr, "resolve", outcome)
			if outcome.Status == interrupt.OutcomeSubmitted || outcome.Status == interrupt.OutcomeHandled {
				return nil
			}
		case "show":
			r.printState()
		case "quit", "q":
			return nil
		case "help", "h", "?":
			r.printHelp()
		default:
			fmt.Printf("Unknown command %q, try help.\n", cmd)
		}
	}
}

func (r *reviewLoop) recordDecision(intr *interrupt.Interrupt, decision string, outcome interrupt.Outcome) {
	if r.app.audit == nil {
		return
	}
	r.app.audit.Record(r.threadID, intr.ActionRequest.Action, decision, string(outcome.Status))
}

// editField parses "key=value" and routes it through the store.
func (r *reviewLoop) editField(arg string) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok {
		fmt.Println("Usage: edit <field>=<value>")
		return
	}
	edit, found := interrupt.FindByType(r.store.Responses(), interrupt.TypeEdit)
	if !found {
		fmt.Println("This interrupt does not allow edits.")
		return
	}
	if err := r.store.UpdateEdit(edit, strings.TrimSpace(key), value); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func (r *reviewLoop) printInterrupt(intr *interrupt.Interrupt) {
	fmt.Printf("\nThread %s is paused on:\n\n", r.threadID)
	fmt.Printf("  %s\n", intr.ActionRequest.Action)
	for _, k := range sortedKeys(intr.ActionRequest.Args) {
		fmt.Printf("    %s: %s\n", k, interrupt.Stringify(intr.ActionRequest.Args[k]))
	}
	if intr.Description != "" {
		fmt.Printf("\n  %s\n", intr.Description)
	}

	var allowed []string
	if intr.Config.AllowAccept {
		allowed = append(allowed, "accept")
	}
	if intr.Config.AllowEdit {
		allowed = append(allowed, "edit")
	}
	if intr.Config.AllowRespond {
		allowed = append(allowed, "respond")
	}
	if intr.Config.AllowIgnore {
		allowed = append(allowed, "ignore")
	}
	fmt.Printf("\nAllowed: %s\n", strings.Join(allowed, ", "))
}

func (r *reviewLoop) printState() {
	for _, resp := range r.store.Responses() {
		switch resp.Type {
		case interrupt.TypeEdit:
			fmt.Println("edit:")
			for _, k := range sortedStringKeys(resp.Edit.Args) {
				fmt.Printf("  %s: %s\n", k, resp.Edit.Args[k])
			}
		case interrupt.TypeRespond:
			fmt.Printf("respond: %q\n", resp.Respond)
		}
	}
	flags := r.store.Flags()
	fmt.Printf("edited: %v, reply: %v\n", flags.HasEdited, flags.HasAddedResponse)
}

func (r *reviewLoop) printPrompt() {
	label := "submit"
	if t, ok := r.store.SelectedSubmitType(); ok {
		label = string(t)
	}
	fmt.Printf("\n[%s] > ", label)
}

func (r *reviewLoop) printHelp() {
	fmt.Print(`Commands:
  submit                 Send the current decision (shown in the prompt)
  edit <field>=<value>   Change one argument of the proposed action
  respond <text>         Reply with free text instead
  reset                  Restore all fields to their original values
  ignore                 Dismiss the thread without answering
  resolve                Mark the thread finished
  show                   Print the current edit/reply state
  quit                   Leave without deciding
`)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
