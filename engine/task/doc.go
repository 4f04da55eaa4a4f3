// Package task implements the bounty task lifecycle: the state machine
// from OPEN through settlement, the packed-decimal timeline arithmetic,
// and the orchestration of fund movements and issue-tracker side effects
// around each transition.
package task
