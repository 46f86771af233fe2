/*
Package offramp is a deterministic flow-resolution engine for subscription
cancellation journeys: a guided, branching wizard that adapts to the user's
answers and an A/B experiment cohort, and persists the outcome exactly once.

# Concept

The flow is a declarative graph of steps. Each step carries its questions,
its buttons and the conditional branch rules that steer the walk; the engine
resolves transitions, validates answers and pins the experiment cohort, while
the host owns the IO. This keeps the same core embeddable behind a CLI, an
HTTP API, or a test harness.

Cohorts are sticky: a user's A/B variant is derived deterministically on
first contact, written through a guarded read-before-write path, and never
re-rolled. The downsell offer detour is only ever shown to cohort B.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/offramp"
	)

	func main() {
		eng, err := offramp.New()
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		s, err := eng.OpenSession(ctx, "user-123", "sub-456")
		if err != nil {
			log.Fatal(err)
		}

		// Walk: answer questions, press buttons.
		step, err := s.Advance(ctx, "got-job-no")
		if err != nil {
			log.Fatal(err)
		}
		log.Println("now on", step.ID)
	}

The terminal step commits one durable record per (user, subscription) pair;
repeating the walk replaces it instead of duplicating it.
*/
package offramp
