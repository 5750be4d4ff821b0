// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package agent runs the HR orchestrator: a bounded reason-act loop over the
// specialist tools, one session at a time per lane, with a sliding window of
// conversation memory.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/internal/store"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

const (
	DefaultMaxIterations = 5
	DefaultTurnTimeout   = 120 * time.Second
)

// Outcome says how a turn reached its answer.
type Outcome string

const (
	OutcomeAnswered       Outcome = "answered"
	OutcomeParseFallback  Outcome = "parse_fallback"
	OutcomeIterationLimit Outcome = "iteration_limit"
)

// Turn is the record of one completed Act call.
type Turn struct {
	SessionID   string        `json:"session_id"`
	Question    string        `json:"question"`
	Steps       []Step        `json:"steps,omitempty"`
	FinalAnswer string        `json:"final_answer"`
	Outcome     Outcome       `json:"outcome"`
	Duration    time.Duration `json:"duration"`
}

// InputScreen vets a user message before the model sees it. It returns the
// message to use, or an error to reject the turn.
type InputScreen interface {
	Filter(ctx context.Context, sessionID, message string) (string, error)
}

// Config wires an Orchestrator. Generator, Tools and Memory are required.
type Config struct {
	Generator     provider.TextGenerator
	Model         string
	Temperature   *float32
	Tools         *ToolSet
	Memory        *Memory
	Input         InputScreen
	MaxIterations int
	TurnTimeout   time.Duration
	Logger        *slog.Logger
}

// Orchestrator answers chat messages by delegating to tools.
type Orchestrator struct {
	gen           provider.TextGenerator
	model         string
	temperature   *float32
	tools         *ToolSet
	memory        *Memory
	input         InputScreen
	maxIterations int
	turnTimeout   time.Duration
	lanes         *LanePool
	logger        *slog.Logger
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Generator == nil {
		return nil, aegiserr.New(aegiserr.CodeAgentNotReady, "generator is required")
	}
	if cfg.Tools == nil {
		return nil, aegiserr.New(aegiserr.CodeAgentNotReady, "tool set is required")
	}
	if cfg.Memory == nil {
		return nil, aegiserr.New(aegiserr.CodeAgentNotReady, "memory is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		gen:           cfg.Generator,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		tools:         cfg.Tools,
		memory:        cfg.Memory,
		input:         cfg.Input,
		maxIterations: cfg.MaxIterations,
		turnTimeout:   cfg.TurnTimeout,
		lanes:         NewLanePool(cfg.Logger),
		logger:        cfg.Logger,
	}, nil
}

// Act runs one turn for sessionID. Turns of the same session run in
// submission order. Memory is updated only when the turn produces an answer.
func (o *Orchestrator) Act(ctx context.Context, sessionID, message string) (Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Turn{}, aegiserr.New(aegiserr.CodeChatInvalidInput, "session id must not be empty")
	}
	if strings.TrimSpace(message) == "" {
		return Turn{}, aegiserr.New(aegiserr.CodeChatInvalidInput, "message must not be empty",
			aegiserr.FieldSessionID(sessionID))
	}

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	var turn Turn
	err := o.lanes.Submit(ctx, sessionID, func(ctx context.Context) error {
		var err error
		turn, err = o.turn(ctx, sessionID, message)
		return err
	})
	if err != nil {
		return Turn{}, o.classify(ctx, sessionID, err)
	}
	return turn, nil
}

// ClearSession drops the session's memory and lane.
func (o *Orchestrator) ClearSession(ctx context.Context, sessionID string) error {
	o.lanes.Evict(sessionID)
	return o.memory.Clear(ctx, sessionID)
}

// Tools returns the registered tool set.
func (o *Orchestrator) Tools() *ToolSet { return o.tools }

// Close waits for queued turns and stops every lane.
func (o *Orchestrator) Close() {
	o.lanes.Close()
}

func (o *Orchestrator) turn(ctx context.Context, sessionID, message string) (Turn, error) {
	began := time.Now()
	turn := Turn{SessionID: sessionID, Question: message}

	question := message
	if o.input != nil {
		filtered, err := o.input.Filter(ctx, sessionID, message)
		if err != nil {
			return Turn{}, err
		}
		question = filtered
	}

	history, err := o.memory.Load(ctx, sessionID)
	if err != nil {
		return Turn{}, aegiserr.Reclassify(err, aegiserr.CodeAgentLoopFailure, "loading memory",
			aegiserr.FieldSessionID(sessionID))
	}

	turn.FinalAnswer, turn.Outcome, turn.Steps, err = o.reason(ctx, sessionID, history, question)
	if err != nil {
		return Turn{}, err
	}

	// A turn that ran past its deadline is not remembered even if it
	// reached an answer.
	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}
	if err := o.memory.Append(ctx, sessionID, question, turn.FinalAnswer); err != nil {
		return Turn{}, aegiserr.Reclassify(err, aegiserr.CodeAgentLoopFailure, "saving memory",
			aegiserr.FieldSessionID(sessionID))
	}

	turn.Duration = time.Since(began)
	o.logger.Info("turn completed",
		"session_id", sessionID,
		"outcome", turn.Outcome,
		"tool_calls", len(turn.Steps),
		"duration", turn.Duration)
	return turn, nil
}

func (o *Orchestrator) reason(ctx context.Context, sessionID string, history []*store.Exchange, question string) (string, Outcome, []Step, error) {
	var steps []Step
	for range o.maxIterations {
		reply, err := o.gen.Generate(ctx, provider.GenerateRequest{
			Model:  o.model,
			Prompt: RenderPrompt(o.tools, history, question, steps),
			Options: provider.ChatOptions{
				Temperature:   o.temperature,
				StopSequences: []string{StopSequence},
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", "", nil, ctx.Err()
			}
			return "", "", nil, aegiserr.Reclassify(err, aegiserr.CodeAgentLoopFailure, "generating step",
				aegiserr.FieldSessionID(sessionID))
		}

		step, err := ParseStep(reply)
		if err == nil && !step.IsFinal() {
			if _, ok := o.tools.Lookup(step.Action); !ok {
				err = parseFailure("unknown tool "+step.Action, reply)
			}
		}
		if err != nil {
			o.logger.Warn("unparseable model reply",
				"session_id", sessionID,
				"error", err,
				"fields", aegiserr.FieldsOf(err))
			return ParseFallbackAnswer, OutcomeParseFallback, steps, nil
		}
		if step.IsFinal() {
			return step.FinalAnswer, OutcomeAnswered, steps, nil
		}

		tool, _ := o.tools.Lookup(step.Action)
		o.logger.Debug("invoking tool", "session_id", sessionID, "tool", step.Action)
		observation, err := tool.Invoke(ctx, step.ActionInput)
		if err != nil {
			if ctx.Err() != nil {
				return "", "", nil, ctx.Err()
			}
			return "", "", nil, aegiserr.Reclassify(err, aegiserr.CodeAgentToolFailure, "tool "+step.Action+" failed",
				aegiserr.FieldTool(step.Action), aegiserr.FieldSessionID(sessionID))
		}
		step.Observation = observation
		steps = append(steps, step)
	}

	o.logger.Warn("turn hit iteration limit", "session_id", sessionID, "max_iterations", o.maxIterations)
	return IterationLimitAnswer, OutcomeIterationLimit, steps, nil
}

// classify maps lane and deadline errors onto the agent error codes.
func (o *Orchestrator) classify(ctx context.Context, sessionID string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		o.logger.Warn("turn timed out", "session_id", sessionID, "timeout", o.turnTimeout)
		return aegiserr.New(aegiserr.CodeAgentGenerationTimeout, "the response took too long",
			aegiserr.FieldSessionID(sessionID), aegiserr.Field("timeout", o.turnTimeout.String()))
	case errors.Is(err, context.Canceled):
		return aegiserr.Wrap(err, aegiserr.CodeAgentLoopFailure, "turn cancelled",
			aegiserr.FieldSessionID(sessionID))
	case aegiserr.CodeOf(err) == "":
		return aegiserr.Wrap(err, aegiserr.CodeAgentLoopFailure, "turn failed",
			aegiserr.FieldSessionID(sessionID))
	default:
		return err
	}
}
