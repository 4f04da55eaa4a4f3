// Package vcs annotates issues on the version-control host as task
// lifecycle side effects: bounty labels and status comments. These calls
// are best-effort; a failure after a committed fund movement downgrades
// the transition to partial success instead of rolling anything back.
package vcs
