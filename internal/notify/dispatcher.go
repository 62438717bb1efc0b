// Package notify turns @mentions in a freshly sent message into system
// authored direct messages, one per mentioned recipient.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/mbeoliero/kit/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/mbeoliero/huddle/internal/mention"
	"github.com/mbeoliero/huddle/internal/metrics"
)

// Scope is where the mentioning message was posted
type Scope string

const (
	ScopeChannel Scope = "channel"
	ScopeThread  Scope = "thread"
)

const (
	defaultSnippetMaxLen = 80
	defaultTimeLayout    = "Jan 2, 2006 15:04 MST"
	defaultWorkers       = 8
	defaultTimeout       = 5 * time.Second
	ellipsis             = "…"
)

// Sender persists a system authored direct message from the system user to
// recipientId, in the conversation between mentionerId and recipientId.
type Sender interface {
	SendSystemDirect(ctx context.Context, mentionerId, recipientId, text string) error
}

// Notice describes a persisted message that may mention people
type Notice struct {
	SenderId   string
	SenderName string
	Text       string
	Scope      Scope
	ScopeTitle string
	Roster     []mention.Entity
	SentAt     time.Time
}

// Result lists recipients by delivery outcome, in order of first mention
type Result struct {
	Delivered []string
	Failed    []string
}

// Options tunes message composition and fan-out
type Options struct {
	SnippetMaxLen int
	Location      *time.Location
	TimeLayout    string
	Workers       int
	Timeout       time.Duration
}

// Dispatcher fans mention notifications out to recipients
type Dispatcher struct {
	sender Sender
	opts   Options
}

// NewDispatcher creates a dispatcher, filling unset options with defaults
func NewDispatcher(sender Sender, opts Options) *Dispatcher {
	if opts.SnippetMaxLen <= 0 {
		opts.SnippetMaxLen = defaultSnippetMaxLen
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = defaultTimeLayout
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Dispatcher{sender: sender, opts: opts}
}

// Recipients returns the distinct mentioned roster entries, sender excluded
func Recipients(n Notice) []mention.Entity {
	mentioned := mention.ExtractMentionedEntities(n.Text, n.Roster, mention.UserTrigger)
	recipients := make([]mention.Entity, 0, len(mentioned))
	for _, e := range mentioned {
		if e.Id == n.SenderId {
			continue
		}
		recipients = append(recipients, e)
	}
	return recipients
}

// Dispatch notifies every recipient mentioned in n. Deliveries run
// concurrently and fail independently; failures are logged and reported in
// the result, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notice) Result {
	recipients := Recipients(n)
	if len(recipients) == 0 {
		return Result{}
	}

	text := d.Compose(n)
	errs := make([]error, len(recipients))

	p := pool.New().WithMaxGoroutines(d.opts.Workers)
	for i, r := range recipients {
		p.Go(func() {
			sendCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
			defer cancel()
			errs[i] = d.sender.SendSystemDirect(sendCtx, n.SenderId, r.Id, text)
		})
	}
	p.Wait()

	var result Result
	for i, r := range recipients {
		if errs[i] != nil {
			metrics.MentionNotifications.WithLabelValues(string(n.Scope), metrics.ResultFailed).Inc()
			log.CtxWarn(ctx, "mention notification failed: sender_id=%s, recipient_id=%s, scope=%s, error=%v", n.SenderId, r.Id, n.Scope, errs[i])
			result.Failed = append(result.Failed, r.Id)
			continue
		}
		metrics.MentionNotifications.WithLabelValues(string(n.Scope), metrics.ResultOk).Inc()
		result.Delivered = append(result.Delivered, r.Id)
	}

	log.CtxInfo(ctx, "mention notifications dispatched: sender_id=%s, scope=%s, delivered=%d, failed=%d",
		n.SenderId, n.Scope, len(result.Delivered), len(result.Failed))
	return result
}

// Compose renders the notification body sent to each recipient
func (d *Dispatcher) Compose(n Notice) string {
	where := "#" + n.ScopeTitle
	if n.Scope == ScopeThread {
		where = "a thread in #" + n.ScopeTitle
	}
	at := n.SentAt.In(d.opts.Location).Format(d.opts.TimeLayout)
	return fmt.Sprintf("%s mentioned you in %s at %s:\n\"%s\"", n.SenderName, where, at, d.Snippet(n.Text))
}

// Snippet collapses whitespace and truncates text to the configured display width
func (d *Dispatcher) Snippet(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if runewidth.StringWidth(flat) <= d.opts.SnippetMaxLen {
		return flat
	}
	return runewidth.Truncate(flat, d.opts.SnippetMaxLen, ellipsis)
}
