package numbering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"tokolaris/backend/internal/store"
)

// Rule describes the numbering scheme for one business document type.
// Date-scoped rules embed the issue date and restart at 1 every day;
// global rules (customer/supplier codes) count up forever.
type Rule struct {
	Prefix     string
	Width      int
	DateScoped bool
}

var (
	Order         = Rule{Prefix: "ORD", Width: 3, DateScoped: true}
	PurchaseOrder = Rule{Prefix: "PO", Width: 3, DateScoped: true}
	Shift         = Rule{Prefix: "SHIFT", Width: 3, DateScoped: true}
	Session       = Rule{Prefix: "SES", Width: 3, DateScoped: true}
	Refund        = Rule{Prefix: "RF", Width: 4, DateScoped: true}
	HoldOrder     = Rule{Prefix: "HOLD", Width: 4, DateScoped: true}
	CustomerCode  = Rule{Prefix: "C", Width: 5, DateScoped: false}
	SupplierCode  = Rule{Prefix: "S", Width: 5, DateScoped: false}
)

var rulesByScope = map[string]Rule{
	"order":          Order,
	"purchase_order": PurchaseOrder,
	"shift":          Shift,
	"session":        Session,
	"refund":         Refund,
	"hold_order":     HoldOrder,
	"customer_code":  CustomerCode,
	"supplier_code":  SupplierCode,
}

// RuleForScope resolves a rule from its administrative scope name.
func RuleForScope(scope string) (Rule, bool) {
	rule, ok := rulesByScope[strings.ToLower(strings.TrimSpace(scope))]
	return rule, ok
}

// ScopeKey is the counter key numbers are issued under. Date-scoped rules
// get one counter per day, so sequences restart at 1 each day.
func (r Rule) ScopeKey(day time.Time) string {
	if r.DateScoped {
		return r.Prefix + "-" + day.UTC().Format("20060102")
	}
	return r.Prefix
}

// Format renders an issued sequence value as the full document number,
// e.g. ORD-20240115-001 or C00001. Zero-padding is to Width; values past
// the width simply grow longer rather than wrapping.
func (r Rule) Format(day time.Time, seq int64) string {
	padded := fmt.Sprintf("%0*d", r.Width, seq)
	if r.DateScoped {
		return fmt.Sprintf("%s-%s-%s", r.Prefix, day.UTC().Format("20060102"), padded)
	}
	return r.Prefix + padded
}

// ParseSuffix extracts the trailing numeric run of an issued number.
func ParseSuffix(number string) (int64, error) {
	trimmed := strings.TrimSpace(number)
	start := len(trimmed)
	for start > 0 && unicode.IsDigit(rune(trimmed[start-1])) {
		start--
	}
	if start == len(trimmed) {
		return 0, fmt.Errorf("number %q has no numeric suffix", number)
	}

	var value int64
	for _, c := range trimmed[start:] {
		value = value*10 + int64(c-'0')
	}
	return value, nil
}

// CounterStore is the persistence contract for sequence issuance. The
// increment must be atomic per scope key: two concurrent callers must
// never observe the same value.
type CounterStore interface {
	NextSequence(ctx context.Context, scopeKey string) (int64, error)
	ResetSequence(ctx context.Context, scopeKey string) error
}

type Generator struct {
	counters CounterStore
	now      func() time.Time
}

func NewGenerator(counters CounterStore) *Generator {
	return &Generator{counters: counters, now: time.Now}
}

// Next issues the next number for the rule. A conflict from a store
// without a native atomic counter is retried once before surfacing.
func (g *Generator) Next(ctx context.Context, rule Rule) (string, error) {
	day := g.now().UTC()
	scopeKey := rule.ScopeKey(day)

	seq, err := g.counters.NextSequence(ctx, scopeKey)
	if errors.Is(err, store.ErrConflict) {
		seq, err = g.counters.NextSequence(ctx, scopeKey)
	}
	if err != nil {
		return "", fmt.Errorf("issue %s number: %w", rule.Prefix, err)
	}

	return rule.Format(day, seq), nil
}

// Reset clears the rule's current counter scope. Date-scoped rules reset
// today's counter only. Administrative use; issued numbers are not
// reclaimed.
func (g *Generator) Reset(ctx context.Context, rule Rule) error {
	return g.counters.ResetSequence(ctx, rule.ScopeKey(g.now().UTC()))
}
