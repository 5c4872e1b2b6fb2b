package selection

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Candidate is one pool entry as shown to a ranker. Index is 1-based.
type Candidate struct {
	Index   int
	Title   string
	Source  string
	Domain  string
	Summary string
}

type RankRequest struct {
	Topic      string
	Count      int
	Candidates []Candidate
}

// Ranker is an advisory collaborator that orders candidates by importance.
// It answers in free text; Select parses it defensively and falls back to
// quality order on error.
type Ranker interface {
	Rank(ctx context.Context, req RankRequest) (string, error)
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(ctx context.Context, req RankRequest) (string, error)

func (f RankerFunc) Rank(ctx context.Context, req RankRequest) (string, error) {
	return f(ctx, req)
}

var (
	strictListPattern = regexp.MustCompile(`^\d+(?:\s*,\s*\d+)*$`)
	integerPattern    = regexp.MustCompile(`\d+`)
)

// ParseRanking turns a ranker response into exactly want distinct 1-based
// indices in [1, poolSize] (or poolSize of them when the pool is smaller).
//
// A line that is a strict comma separated list of integers wins. Otherwise
// every integer after the last colon is used. Out of range and repeated
// indices are dropped, and any shortfall is filled with the lowest unused
// indices.
func ParseRanking(response string, poolSize, want int) []int {
	if poolSize <= 0 || want <= 0 {
		return nil
	}
	want = min(want, poolSize)

	raw := strictIntegers(response)
	if raw == nil {
		raw = salvageIntegers(response)
	}

	picks := make([]int, 0, want)
	used := make(map[int]bool, want)
	for _, n := range raw {
		if len(picks) == want {
			break
		}
		if n < 1 || n > poolSize || used[n] {
			continue
		}
		used[n] = true
		picks = append(picks, n)
	}
	for n := 1; n <= poolSize && len(picks) < want; n++ {
		if !used[n] {
			used[n] = true
			picks = append(picks, n)
		}
	}
	return picks
}

func strictIntegers(response string) []int {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "[]."))
		if line == "" || !strictListPattern.MatchString(line) {
			continue
		}
		return atoiAll(integerPattern.FindAllString(line, -1))
	}
	return nil
}

func salvageIntegers(response string) []int {
	tail := response
	if idx := strings.LastIndex(response, ":"); idx >= 0 {
		tail = response[idx+1:]
	}
	return atoiAll(integerPattern.FindAllString(tail, -1))
}

func atoiAll(tokens []string) []int {
	out := make([]int, 0, len(tokens))
	for _, token := range tokens {
		n, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
