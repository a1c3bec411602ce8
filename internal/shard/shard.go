// Package shard selects the poems a job processes. Several jobs with the same
// eligible list and job count cover every eligible poem exactly once.
package shard

import (
	"fmt"
	"regexp"

	"github.com/jakobytes/elias-1848/internal/config"
)

// CompilePattern compiles an ID pattern that must match at the start of a
// poem ID. An empty pattern returns nil, which makes every poem eligible.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "input.pattern", Reason: "cannot compile", Err: err}
	}
	return re, nil
}

// Eligible returns the indices of ids matched by re, in order. A nil re
// matches every ID.
func Eligible(ids []string, re *regexp.Regexp) []int {
	out := make([]int, 0, len(ids))
	for i, id := range ids {
		if re == nil || re.MatchString(id) {
			out = append(out, i)
		}
	}
	return out
}

// Assign returns the round-robin shard eligible[id], eligible[id+count], ...
// With both id and count nil the whole eligible list is returned.
func Assign(eligible []int, id, count *int) ([]int, error) {
	if err := config.ValidateJob(id, count); err != nil {
		return nil, err
	}
	if id == nil {
		return eligible, nil
	}
	out := make([]int, 0, len(eligible)/(*count)+1)
	for k := *id; k < len(eligible); k += *count {
		out = append(out, eligible[k])
	}
	return out, nil
}

// Describe formats a shard for logs.
func Describe(id, count *int) string {
	if id == nil || count == nil {
		return "all"
	}
	return fmt.Sprintf("%d/%d", *id, *count)
}
