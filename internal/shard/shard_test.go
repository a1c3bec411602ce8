package shard

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/jakobytes/elias-1848/internal/config"
)

func intp(v int) *int { return &v }

func TestCompilePattern(t *testing.T) {
	re, err := CompilePattern("skvr_0")
	if err != nil {
		t.Fatal(err)
	}
	if !re.MatchString("skvr_01234") {
		t.Error("pattern should match at the start")
	}
	if re.MatchString("x_skvr_01234") {
		t.Error("pattern should be anchored at the start of the ID")
	}
	if re, err := CompilePattern(""); re != nil || err != nil {
		t.Errorf("empty pattern = %v, %v", re, err)
	}
	var ce *config.ConfigurationError
	if _, err := CompilePattern("("); !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestCompilePattern_Alternation(t *testing.T) {
	re, _ := CompilePattern("a|b")
	for id, want := range map[string]bool{"a1": true, "b1": true, "ca": false, "cb": false} {
		if got := re.MatchString(id); got != want {
			t.Errorf("match(%s) = %v, want %v", id, got, want)
		}
	}
}

func TestEligible(t *testing.T) {
	ids := []string{"a1", "b1", "a2", "c1"}
	if got := Eligible(ids, nil); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("Eligible(nil) = %v", got)
	}
	re, _ := CompilePattern("a")
	if got := Eligible(ids, re); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("Eligible(a) = %v", got)
	}
}

func TestAssign_CompleteAndDisjoint(t *testing.T) {
	eligible := []int{0, 2, 3, 5, 7, 8, 9, 11, 12, 13}
	for jobs := 1; jobs <= len(eligible)+2; jobs++ {
		seen := make(map[int]int)
		var all []int
		for id := 0; id < jobs; id++ {
			got, err := Assign(eligible, intp(id), intp(jobs))
			if err != nil {
				t.Fatal(err)
			}
			for _, i := range got {
				seen[i]++
			}
			all = append(all, got...)
		}
		for i, n := range seen {
			if n != 1 {
				t.Errorf("jobs=%d: poem %d assigned %d times", jobs, i, n)
			}
		}
		sort.Ints(all)
		if !reflect.DeepEqual(all, eligible) {
			t.Errorf("jobs=%d: union = %v", jobs, all)
		}
	}
}

func TestAssign_RoundRobin(t *testing.T) {
	got, _ := Assign([]int{10, 11, 12, 13, 14}, intp(1), intp(2))
	if !reflect.DeepEqual(got, []int{11, 13}) {
		t.Errorf("Assign() = %v, want [11 13]", got)
	}
	all, _ := Assign([]int{4, 5}, nil, nil)
	if !reflect.DeepEqual(all, []int{4, 5}) {
		t.Errorf("Assign without job = %v", all)
	}
}

func TestAssign_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		id, count *int
	}{
		{"id_only", intp(0), nil},
		{"count_only", nil, intp(3)},
		{"id_out_of_range", intp(3), intp(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ce *config.ConfigurationError
			if _, err := Assign([]int{1, 2}, tt.id, tt.count); !errors.As(err, &ce) {
				t.Errorf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(nil, nil); got != "all" {
		t.Errorf("Describe(nil) = %s", got)
	}
	if got := Describe(intp(2), intp(5)); got != "2/5" {
		t.Errorf("Describe(2,5) = %s", got)
	}
}
