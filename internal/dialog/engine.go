package dialog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paketku/paketku/internal/logging"
)

// DefaultMaxAttempts is the per-field invalid-input budget applied when a
// definition does not set its own.
const DefaultMaxAttempts = 5

// Values holds the validated field values collected so far, keyed by field
// name. Validators type-convert inputs, so entries carry parsed values, not
// raw text. AfterValid hooks may add derived entries under non-field names.
type Values map[string]interface{}

// String returns the value under name as a string, or "" when absent or not
// a string.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Field is one step of a dialog: a prompt, a validator, and optional hooks.
type Field struct {
	// Name keys the validated value in Values. Unique within a definition.
	Name string

	// Prompt is sent when the dialog lands on this field.
	Prompt string

	// Validate parses raw text into the stored value. A returned error
	// consumes one attempt of the field's retry budget and its message is
	// used to re-prompt.
	Validate func(input string) (interface{}, error)

	// SkipWhen, if set, is evaluated against the values collected so far
	// when the dialog is about to land on this field. True skips it.
	SkipWhen func(v Values) bool

	// AfterValid, if set, runs after a valid value is stored and before the
	// dialog advances. A returned error keeps the dialog on this field and
	// re-prompts without consuming a validation retry; used for side effects
	// that must succeed before the next field makes sense (sending an OTP).
	// Consecutive hook failures carry their own counter and abort the dialog
	// once they reach the definition's attempt budget; a success resets it.
	// The hook may write derived entries into v under names that are not
	// fields (a subscriber ID resolved from the phone number); OnComplete
	// receives them alongside the field values.
	AfterValid func(ctx context.Context, v Values) error
}

// RetryField asks the engine to re-enter a named field after OnComplete ran.
// It consumes one attempt of that field's budget, so a completion step that
// keeps failing is bounded the same way direct invalid input is.
type RetryField struct {
	Field  string
	Prompt string // optional; empty falls back to the field's Prompt
}

// Definition describes one dialog: its ordered fields and its terminal
// callbacks. Definitions are immutable and shared; all per-user state lives
// in the engine.
type Definition struct {
	Name        string
	Fields      []Field
	MaxAttempts int // 0 means DefaultMaxAttempts

	// OnComplete receives the full collected values once the last field is
	// done. It returns the final reply, or a RetryField to re-enter one
	// field, or an error that terminates the dialog and propagates to the
	// caller.
	OnComplete func(ctx context.Context, chatUserID int64, v Values) (string, *RetryField, error)

	// OnCancel builds the reply for an explicit cancellation. Optional.
	OnCancel func(chatUserID int64) string

	// OnAbort builds the reply when a field's retry budget is exhausted.
	// Optional.
	OnAbort func(chatUserID int64) string
}

func (d *Definition) maxAttempts() int {
	if d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (d *Definition) fieldIndex(name string) int {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Status is the lifecycle state of one dialog context.
type Status int

const (
	StatusActive Status = iota
	StatusCompleted
	StatusCancelled
	StatusAborted
)

// dialogContext is the per-user state of one in-flight dialog. It exists
// only while the dialog is active; terminal transitions remove it from the
// engine.
type dialogContext struct {
	def          Definition
	values       Values
	attempts     map[string]int
	hookFailures map[string]int
	index        int
	startedAt    time.Time
}

// Engine drives multi-step dialogs for many chat users. At most one dialog
// is live per user; starting a new one overwrites any leftover context. The
// engine performs no I/O itself; side effects run through the definition's
// hooks. Message ordering per user is the transport's responsibility; the
// engine processes each user's texts in delivery order.
type Engine struct {
	mu      sync.Mutex
	dialogs map[int64]*dialogContext
	logger  *logging.Logger
	now     func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock injects the time source used to stamp dialog starts.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an empty dialog engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		dialogs: make(map[int64]*dialogContext),
		logger:  logging.NewLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a dialog for the user, replacing any existing one, and
// returns the first prompt. When every field is skipped the dialog completes
// immediately and the returned string is OnComplete's reply.
func (e *Engine) Start(ctx context.Context, chatUserID int64, def Definition) (string, error) {
	dc := &dialogContext{
		def:          def,
		values:       make(Values),
		attempts:     make(map[string]int),
		hookFailures: make(map[string]int),
		startedAt:    e.now(),
	}
	dc.index = nextEligible(def, dc.values, 0)

	if dc.index >= len(def.Fields) {
		return e.complete(ctx, chatUserID, dc)
	}

	e.mu.Lock()
	e.dialogs[chatUserID] = dc
	e.mu.Unlock()

	e.logger.DebugWithContext(ctx, "dialog started",
		"dialog", def.Name,
		"chat_user_id", chatUserID)
	return def.Fields[dc.index].Prompt, nil
}

// HandleText feeds one incoming text to the user's active dialog. handled is
// false when the user has no active dialog and the text belongs to someone
// else's routing.
func (e *Engine) HandleText(ctx context.Context, chatUserID int64, text string) (reply string, handled bool, err error) {
	e.mu.Lock()
	dc, ok := e.dialogs[chatUserID]
	e.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	field := dc.def.Fields[dc.index]

	value, verr := field.Validate(text)
	if verr != nil {
		dc.attempts[field.Name]++
		if dc.attempts[field.Name] >= dc.def.maxAttempts() {
			return e.abort(ctx, chatUserID, dc)
		}
		return fmt.Sprintf("%s\n%s", verr.Error(), field.Prompt), true, nil
	}

	dc.values[field.Name] = value

	if field.AfterValid != nil {
		if aerr := field.AfterValid(ctx, dc.values); aerr != nil {
			dc.hookFailures[field.Name]++
			if dc.hookFailures[field.Name] >= dc.def.maxAttempts() {
				return e.abort(ctx, chatUserID, dc)
			}
			// Stay on this field without consuming a validation retry. The
			// stored value is overwritten by the next input.
			return fmt.Sprintf("%s\n%s", aerr.Error(), field.Prompt), true, nil
		}
		delete(dc.hookFailures, field.Name)
	}

	dc.index = nextEligible(dc.def, dc.values, dc.index+1)
	if dc.index >= len(dc.def.Fields) {
		reply, err := e.complete(ctx, chatUserID, dc)
		return reply, true, err
	}
	return dc.def.Fields[dc.index].Prompt, true, nil
}

// Cancel terminates the user's dialog if one is active. It is idempotent:
// cancelling with no live context reports cancelled=false and does nothing.
func (e *Engine) Cancel(chatUserID int64) (reply string, cancelled bool) {
	e.mu.Lock()
	dc, ok := e.dialogs[chatUserID]
	if ok {
		delete(e.dialogs, chatUserID)
	}
	e.mu.Unlock()
	if !ok {
		return "", false
	}

	if dc.def.OnCancel != nil {
		reply = dc.def.OnCancel(chatUserID)
	}
	e.logger.Debug("dialog cancelled",
		"dialog", dc.def.Name,
		"chat_user_id", chatUserID)
	return reply, true
}

// Active reports whether the user has a live dialog.
func (e *Engine) Active(chatUserID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.dialogs[chatUserID]
	return ok
}

// Count returns the number of live dialog contexts across all users.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dialogs)
}

// PruneOlderThan drops live contexts started more than age ago and returns
// how many were removed. Abandoned dialogs otherwise live until overwritten;
// a periodic prune bounds that memory.
func (e *Engine) PruneOlderThan(age time.Duration) int {
	cutoff := e.now().Add(-age)

	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, dc := range e.dialogs {
		if dc.startedAt.Before(cutoff) {
			delete(e.dialogs, id)
			removed++
		}
	}
	if removed > 0 {
		e.logger.Info("pruned stale dialogs", "count", removed)
	}
	return removed
}

// complete runs OnComplete and resolves its outcome. The context is already
// final from the user's perspective unless a RetryField re-enters a field.
func (e *Engine) complete(ctx context.Context, chatUserID int64, dc *dialogContext) (string, error) {
	reply, retry, err := dc.def.OnComplete(ctx, chatUserID, dc.values)
	if err != nil {
		e.remove(chatUserID)
		return "", err
	}
	if retry == nil {
		e.remove(chatUserID)
		e.logger.DebugWithContext(ctx, "dialog completed",
			"dialog", dc.def.Name,
			"chat_user_id", chatUserID)
		return reply, nil
	}

	idx := dc.def.fieldIndex(retry.Field)
	if idx < 0 {
		e.remove(chatUserID)
		return "", fmt.Errorf("dialog %s retries unknown field %s", dc.def.Name, retry.Field)
	}

	dc.attempts[retry.Field]++
	if dc.attempts[retry.Field] >= dc.def.maxAttempts() {
		reply, _, err := e.abort(ctx, chatUserID, dc)
		return reply, err
	}

	dc.index = idx
	delete(dc.values, retry.Field)
	e.mu.Lock()
	e.dialogs[chatUserID] = dc
	e.mu.Unlock()

	prompt := retry.Prompt
	if prompt == "" {
		prompt = dc.def.Fields[idx].Prompt
	}
	if reply != "" {
		return fmt.Sprintf("%s\n%s", reply, prompt), nil
	}
	return prompt, nil
}

func (e *Engine) abort(ctx context.Context, chatUserID int64, dc *dialogContext) (string, bool, error) {
	e.remove(chatUserID)
	e.logger.WarnWithContext(ctx, "dialog aborted, retry budget exhausted",
		"dialog", dc.def.Name,
		"chat_user_id", chatUserID)
	if dc.def.OnAbort != nil {
		return dc.def.OnAbort(chatUserID), true, nil
	}
	return "Too many invalid attempts. Please start over.", true, nil
}

func (e *Engine) remove(chatUserID int64) {
	e.mu.Lock()
	delete(e.dialogs, chatUserID)
	e.mu.Unlock()
}

// nextEligible returns the first field index at or after from whose SkipWhen
// does not fire.
func nextEligible(def Definition, v Values, from int) int {
	i := from
	for i < len(def.Fields) {
		f := def.Fields[i]
		if f.SkipWhen != nil && f.SkipWhen(v) {
			i++
			continue
		}
		break
	}
	return i
}
