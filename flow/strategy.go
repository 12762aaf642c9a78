package flow

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/resultx"
)

// runSequential walks all declared steps in order, threading each step's
// reply into the next. Each step's condition is re-checked against the
// message currently in flight (not the original flow input) immediately
// before it would run, so a later step can react to an earlier step's
// output (e.g. data it just set); unmatched steps are skipped without
// being dispatched. The full Comm, including Data, is threaded by default;
// honorStrip distinguishes SEQUENTIAL (true: a step with StripData set
// drops Data before the next step sees it) from PIPELINE (false: Data
// always carries forward regardless of StripData). A failure short-
// circuits the remainder; the returned error carries context step=<id>.
func runSequential(ctx context.Context, steps []Step, input comm.Comm, honorStrip bool) (resultx.Result[comm.Comm], int, int) {
	current := input
	completed := 0
	skipped := 0

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return resultx.Fail[comm.Comm](resultx.New("flow", resultx.ErrCancelled, "flow cancelled")), completed, skipped
		default:
		}

		if !step.enabled(current) {
			skipped++
			continue
		}

		res := step.Agent.ProcessMessage(ctx, current)
		if res.IsFailure() {
			return resultx.Fail[comm.Comm](stepError(step.ID, res.Err())), completed, skipped
		}

		reply := res.Unwrap()
		completed++
		if honorStrip && step.StripData {
			current = comm.Comm{
				ID:        reply.ID,
				ParentID:  reply.ParentID,
				Content:   reply.Content,
				From:      reply.From,
				To:        reply.To,
				Type:      reply.Type,
				Role:      reply.Role,
				Priority:  reply.Priority,
				Metadata:  reply.Metadata,
				CreatedAt: reply.CreatedAt,
			}
		} else {
			current = reply
		}
	}

	return resultx.Ok(current), completed, skipped
}

type stepOutcome struct {
	step    Step
	content string
	err     *resultx.Error
}

// runParallel executes every enabled step concurrently on the same input
// message, merging replies into one Comm whose content is a deterministic,
// declared-order concatenation and whose data carries per_agent_results.
// A step failure is recorded in data.errors but never aborts its peers;
// overall result is Success if at least one step succeeded.
func runParallel(ctx context.Context, steps []Step, input comm.Comm) (resultx.Result[comm.Comm], int) {
	outcomes := make([]stepOutcome, len(steps))
	var wg sync.WaitGroup

	for i, step := range steps {
		wg.Add(1)
		go func(idx int, s Step) {
			defer wg.Done()
			res := s.Agent.ProcessMessage(ctx, input)
			if res.IsFailure() {
				outcomes[idx] = stepOutcome{step: s, err: res.Err()}
				return
			}
			outcomes[idx] = stepOutcome{step: s, content: res.Unwrap().Content}
		}(i, step)
	}
	wg.Wait()

	perAgent := make(map[string]any, len(outcomes))
	errs := make(map[string]any)
	var contents []string
	completed := 0

	for _, o := range outcomes {
		if o.err != nil {
			errs[o.step.ID] = o.err.Error()
			continue
		}
		completed++
		perAgent[o.step.ID] = o.content
		contents = append(contents, o.content)
	}

	if completed == 0 {
		var lastErr *resultx.Error
		for _, o := range outcomes {
			if o.err != nil {
				lastErr = o.err
			}
		}
		return resultx.Fail[comm.Comm](lastErr), 0
	}

	merged := comm.Comm{Content: strings.Join(contents, "\n")}
	merged = merged.WithData("per_agent_results", perAgent)
	if len(errs) > 0 {
		merged = merged.WithData("errors", errs)
	}
	return resultx.Ok(merged), completed
}

// runCompetition executes every enabled step concurrently; the first
// Success wins and remaining steps are cancelled cooperatively via ctx.
// Ties (Successes observed on the same tick) are broken by the lowest
// declared index, implemented by draining a buffered result channel in
// index order whenever more than one outcome is already waiting.
func runCompetition(ctx context.Context, steps []Step, input comm.Comm) (resultx.Result[comm.Comm], int) {
	if len(steps) == 0 {
		return resultx.Fail[comm.Comm](resultx.New("flow", resultx.ErrInvalidInput, "no enabled steps for competition")), 0
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan stepOutcome, len(steps))
	g, gctx := errgroup.WithContext(raceCtx)
	for _, step := range steps {
		step := step
		g.Go(func() error {
			res := step.Agent.ProcessMessage(gctx, input)
			if res.IsFailure() {
				results <- stepOutcome{step: step, err: res.Err()}
				return nil
			}
			results <- stepOutcome{step: step, content: res.Unwrap().Content}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	var winner *stepOutcome
	var lastErr *resultx.Error
	completed := 0

	for outcome := range results {
		if outcome.err != nil {
			lastErr = outcome.err
			continue
		}
		completed++

		// A success arrived. Drain any other outcomes already queued at this
		// instant, the ones that effectively tied with this one, and pick
		// the lowest declared index among the successes found.
		tied := []stepOutcome{outcome}
	drain:
		for {
			select {
			case extra, ok := <-results:
				if !ok {
					break drain
				}
				if extra.err != nil {
					lastErr = extra.err
					continue
				}
				completed++
				tied = append(tied, extra)
			default:
				break drain
			}
		}

		sort.Slice(tied, func(a, b int) bool { return indexOf(steps, tied[a].step.ID) < indexOf(steps, tied[b].step.ID) })
		first := tied[0]
		winner = &first
		cancel()
		break
	}

	if winner == nil {
		return resultx.Fail[comm.Comm](lastErr), completed
	}
	return resultx.Ok(comm.Comm{Content: winner.content}), completed
}

func indexOf(steps []Step, id string) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return len(steps)
}
