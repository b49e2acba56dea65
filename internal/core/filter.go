// Package core provides filtering, sorting, and lookup of display attempts.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Newer than
	FilterOpLess      FilterOp = "<"  // Older than
	FilterOpGreaterEq FilterOp = ">="
	FilterOpLessEq    FilterOp = "<="
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // campaign, kind, reason, detail, time
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex  *regexp.Regexp // Compiled regex for ~= operator
	cutoff time.Time      // Parsed cutoff for time comparisons
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies criteria for filtering attempts.
type FilterOptions struct {
	Since      time.Duration     // Only attempts newer than now-since (0=all)
	CampaignID string            // Exact match on campaign id
	Kind       model.AttemptKind // Empty matches every kind
	Reason     model.Reason      // Empty matches every reason
	Limit      int               // Maximum results (0=unlimited)
}

// Filter filters attempts based on the provided options.
func Filter(attempts []model.Attempt, opts FilterOptions) []model.Attempt {
	now := time.Now()
	result := make([]model.Attempt, 0, len(attempts))

	for _, a := range attempts {
		if opts.Since > 0 && a.CreatedAt.Before(now.Add(-opts.Since)) {
			continue
		}
		if opts.CampaignID != "" && a.CampaignID != opts.CampaignID {
			continue
		}
		if opts.Kind != "" && a.Kind != opts.Kind {
			continue
		}
		if opts.Reason != "" && a.Reason != opts.Reason {
			continue
		}
		result = append(result, a)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseReason parses an outcome reason. Empty means any.
func ParseReason(s string) (model.Reason, error) {
	r := model.Reason(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case "", model.ReasonDisplayed, model.ReasonRejected, model.ReasonUnavailable,
		model.ReasonInterrupted, model.ReasonIneligible, model.ReasonSkipped:
		return r, nil
	default:
		return "", fmt.Errorf("invalid reason: %s (use displayed, rejected, unavailable, interrupted, ineligible or skipped)", s)
	}
}

// ParseKind parses an attempt kind. Empty means any.
func ParseKind(s string) (model.AttemptKind, error) {
	switch k := model.AttemptKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", model.AttemptKindMessage, model.AttemptKindTooltip:
		return k, nil
	default:
		return "", fmt.Errorf("invalid kind: %s (use message or tooltip)", s)
	}
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,time<1h"
//
// Supported fields: campaign, kind, reason, detail, time
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex), >, <, >=, <=
//
// Examples:
//   - "reason=displayed"
//   - "campaign~promo,kind=tooltip"
//   - "detail~=(?i)anchor"
//   - "time>1h" - attempts from the last hour
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "reason=displayed".
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first.
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx > 0 {
			cond := FilterCondition{
				Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
				Operator: op,
				Value:    strings.TrimSpace(s[idx+len(op):]),
			}
			if err := cond.init(); err != nil {
				return FilterCondition{}, err
			}
			return cond, nil
		}
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init normalizes the field and pre-parses the value.
func (c *FilterCondition) init() error {
	switch c.Field {
	case "campaign", "campaign_id", "id":
		c.Field = "campaign"
	case "kind", "type":
		c.Field = "kind"
		if c.Operator == FilterOpEqual || c.Operator == FilterOpNotEqual {
			k, err := ParseKind(c.Value)
			if err != nil {
				return err
			}
			c.Value = string(k)
		}
	case "reason", "outcome":
		c.Field = "reason"
		if c.Operator == FilterOpEqual || c.Operator == FilterOpNotEqual {
			r, err := ParseReason(c.Value)
			if err != nil {
				return err
			}
			c.Value = string(r)
		}
	case "detail":
	case "time", "timestamp", "ts":
		c.Field = "time"
		switch c.Operator {
		case FilterOpGreater, FilterOpLess, FilterOpGreaterEq, FilterOpLessEq:
		default:
			return fmt.Errorf("time only supports >, <, >= and <=")
		}
		dur, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid time value: %w", err)
		}
		c.cutoff = time.Now().Add(-dur)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}

	return nil
}

// Match tests if an attempt matches every condition.
func (f *FilterExpr) Match(a model.Attempt) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(a) {
			return false
		}
	}
	return true
}

// Match tests if an attempt matches this single condition.
func (c *FilterCondition) Match(a model.Attempt) bool {
	switch c.Field {
	case "campaign":
		return c.matchString(a.CampaignID)
	case "kind":
		return c.matchString(string(a.Kind))
	case "reason":
		return c.matchString(string(a.Reason))
	case "detail":
		return c.matchString(a.Detail)
	case "time":
		return c.matchTime(a.CreatedAt)
	default:
		return false
	}
}

func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.Value
	case FilterOpNotEqual:
		return fieldValue != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

// matchTime compares against the cutoff; "time>1h" means newer than an hour.
func (c *FilterCondition) matchTime(fieldValue time.Time) bool {
	switch c.Operator {
	case FilterOpGreater:
		return fieldValue.After(c.cutoff)
	case FilterOpLess:
		return fieldValue.Before(c.cutoff)
	case FilterOpGreaterEq:
		return !fieldValue.Before(c.cutoff)
	case FilterOpLessEq:
		return !fieldValue.After(c.cutoff)
	default:
		return false
	}
}

// FilterWithExpr filters attempts using a filter expression.
func FilterWithExpr(attempts []model.Attempt, expr *FilterExpr) []model.Attempt {
	if expr == nil || len(expr.Conditions) == 0 {
		return attempts
	}

	result := make([]model.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if expr.Match(a) {
			result = append(result, a)
		}
	}
	return result
}
