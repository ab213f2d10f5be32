// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/attune-dev/attune/internal/knowledge"
)

// Dispatcher routes messages through the keyword router. Correction and
// preference messages get an acknowledgment reply after the learning
// stages run; everything else goes through the full pipeline.
type Dispatcher struct {
	router *Router
	loop   *Loop
}

// NewDispatcher wires the router in front of the pipeline.
func NewDispatcher(router *Router, loop *Loop) *Dispatcher {
	return &Dispatcher{router: router, loop: loop}
}

// Handle processes one message end to end and returns the reply.
func (d *Dispatcher) Handle(ctx context.Context, message string) (string, error) {
	intent := d.router.DetectIntent(message)
	if intent == IntentChat {
		return d.loop.ProcessMessage(ctx, message)
	}

	// Short-circuited intents still learn from the message; only the
	// generation stage is skipped in favor of an acknowledgment.
	outcome, err := d.loop.Learn(ctx, message)
	if err != nil {
		return "", err
	}

	reply := acknowledgment(intent, outcome)
	d.loop.appendHistory(message, reply)
	return reply, nil
}

// acknowledgment picks the reply for a short-circuited intent. When the
// learning stages picked something up, the reply names it; otherwise the
// generic text is used.
func acknowledgment(intent Intent, outcome knowledge.Outcome) string {
	switch intent {
	case IntentCorrection:
		if len(outcome.ValidatedFacts) > 0 {
			return fmt.Sprintf("Thank you for the correction! I will remember that %s.",
				strings.Join(outcome.ValidatedFacts, "; "))
		}
		return "Thank you for the correction! I will learn from it."
	case IntentPreference:
		if p := outcome.Preference; p != nil {
			return fmt.Sprintf("I understand your preference! I will adapt to it (%s: %s).",
				p.Type, p.Value)
		}
		return "I understand your preference! I will adapt to it."
	default:
		return ""
	}
}
