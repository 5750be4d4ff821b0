// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package agent

// StepLog exposes the reply text a step replays into the scratchpad.
func StepLog(s Step) string { return s.log }

// Describe exposes the tool list rendered into the prompt.
func (ts *ToolSet) Describe() string { return ts.describe() }

// LaneCount exposes how many sessions currently hold a lane.
func (o *Orchestrator) LaneCount() int { return o.lanes.Len() }
