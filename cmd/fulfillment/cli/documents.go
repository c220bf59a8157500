package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bulkmart/fulfillment/internal/documents"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/outbox"
)

// EntryQueue adds outbox entries. outbox.Store implements it.
type EntryQueue interface {
	Enqueue(ctx context.Context, leadID, effect string, now time.Time) (outbox.Entry, error)
}

// StatusReader reports document state. documents.Orchestrator implements it.
type StatusReader interface {
	Status(ctx context.Context, leadID string, kind orders.DocumentKind) (documents.DocStatus, error)
}

// DocumentsOpsCLI lets operators inspect and replay document syncs.
type DocumentsOpsCLI struct {
	queue      EntryQueue
	status     StatusReader
	dispatcher orders.Dispatcher
	now        func() time.Time
}

// NewDocumentsOpsCLI constructs the helper. dispatcher may be nil; the relay cron
// then picks the entry up within a minute.
func NewDocumentsOpsCLI(queue EntryQueue, status StatusReader, dispatcher orders.Dispatcher) *DocumentsOpsCLI {
	return &DocumentsOpsCLI{queue: queue, status: status, dispatcher: dispatcher, now: time.Now}
}

// DocumentOptions are the flags shared by the documents commands.
type DocumentOptions struct {
	LeadID     string
	Kinds      []string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *DocumentOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

func parseKinds(raw []string) ([]orders.DocumentKind, error) {
	if len(raw) == 0 {
		return []orders.DocumentKind{orders.KindQuote, orders.KindSalesOrder, orders.KindInvoice}, nil
	}
	kinds := make([]orders.DocumentKind, 0, len(raw))
	for _, r := range raw {
		kind, ok := orders.ParseDocumentKind(strings.TrimSpace(r))
		if !ok {
			return nil, fmt.Errorf("unknown document kind %q", r)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// StatusCommand prints the state of each requested document of an order.
func (c *DocumentsOpsCLI) StatusCommand(ctx context.Context, opts DocumentOptions) int {
	opts.defaults()
	if strings.TrimSpace(opts.LeadID) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "documents status: --lead is required")
		return 1
	}
	kinds, err := parseKinds(opts.Kinds)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "documents status: %v\n", err)
		return 1
	}
	statuses := make([]documents.DocStatus, 0, len(kinds))
	for _, kind := range kinds {
		st, err := c.status.Status(ctx, opts.LeadID, kind)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "documents status: %s: %v\n", kind, err)
			return 1
		}
		statuses = append(statuses, st)
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(statuses); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "documents status: encode json: %v\n", err)
			return 1
		}
	} else {
		renderStatusHuman(opts.Stdout, statuses)
	}
	for _, st := range statuses {
		if st.State == documents.StateFailed {
			return 10
		}
	}
	return 0
}

// RegenerateCommand queues a fresh sync for each requested document that is not yet ready.
func (c *DocumentsOpsCLI) RegenerateCommand(ctx context.Context, opts DocumentOptions) int {
	opts.defaults()
	if strings.TrimSpace(opts.LeadID) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "documents regenerate: --lead is required")
		return 1
	}
	if len(opts.Kinds) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "documents regenerate: --kind is required")
		return 1
	}
	kinds, err := parseKinds(opts.Kinds)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "documents regenerate: %v\n", err)
		return 1
	}
	var queued []outbox.Entry
	for _, kind := range kinds {
		st, err := c.status.Status(ctx, opts.LeadID, kind)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "documents regenerate: %s: %v\n", kind, err)
			return 1
		}
		if st.State == documents.StateReady {
			_, _ = fmt.Fprintf(opts.Stderr, "documents regenerate: %s already exists as %s\n", kind, st.ExternalID)
			continue
		}
		entry, err := c.queue.Enqueue(ctx, opts.LeadID, string(kind), c.now())
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "documents regenerate: %s: %v\n", kind, err)
			return 1
		}
		queued = append(queued, entry)
	}
	if len(queued) > 0 && c.dispatcher != nil {
		if err := c.dispatcher.Kick(ctx); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "documents regenerate: kick relay: %v\n", err)
		}
	}
	if opts.JSONOutput {
		if queued == nil {
			queued = []outbox.Entry{}
		}
		if err := json.NewEncoder(opts.Stdout).Encode(queued); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "documents regenerate: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	for _, e := range queued {
		_, _ = fmt.Fprintf(opts.Stdout, "queued %s for %s (entry %s)\n", e.Effect, e.LeadID, e.ID)
	}
	return 0
}

func renderStatusHuman(out io.Writer, statuses []documents.DocStatus) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KIND\tSTATE\tEXTERNAL ID\tATTEMPTS\tLAST ERROR")
	for _, st := range statuses {
		lastErr := "-"
		if st.LastError != nil {
			lastErr = *st.LastError
		}
		ext := st.ExternalID
		if ext == "" {
			ext = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", st.Kind, st.State, ext, st.Attempts, lastErr)
	}
	_ = tw.Flush()
}
