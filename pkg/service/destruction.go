package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Action discriminates how a destruction target is acted on. delete_rows is
// the only implemented action; mask_fields is reserved for protocols where
// specified fields are nulled per participant instead of removing the row.
type Action string

const (
	ActionDeleteRows Action = "delete_rows"
	ActionMaskFields Action = "mask_fields"
)

func (a Action) String() string {
	return string(a)
}

// Target is a deletion target descriptor: the table a protocol is allowed
// to destroy participant rows in, and the key column those rows are matched
// on. Targets are immutable after startup.
type Target struct {
	Protocol  string
	Dataset   string
	Table     string
	KeyColumn string
	Action    Action
}

// DestructionRequest is the decoded body of a destruction call. It lives
// for the duration of a single request and is never persisted.
type DestructionRequest struct {
	Protocol   string   `json:"protocol"`
	ConnectIDs []string `json:"connect_ids"`
}

// DestructionResult partitions the requested identifiers into those that
// existed and were deleted, and those with no matching row. The two sets
// are disjoint and their union is the deduplicated request.
type DestructionResult struct {
	Target     *Target
	ProjectID  string
	DeletedIDs []string
	NotFound   []string
}

// DestructionResponse is the wire shape of a successful destruction call.
// DeletedIDs is omitted when nothing was deleted.
type DestructionResponse struct {
	Message    string   `json:"message"`
	DeletedIDs []string `json:"deleted_ids,omitempty"`
	NotFound   []string `json:"not_found"`
}

// UnsupportedProtocolError is returned by every failed registry lookup. Its
// message enumerates the allowed protocols so the caller can self-correct.
type UnsupportedProtocolError struct {
	Protocol string
	Allowed  []string
}

func (e *UnsupportedProtocolError) Error() string {
	sorted := make([]string, len(e.Allowed))
	copy(sorted, e.Allowed)
	sort.Strings(sorted)

	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = "'" + p + "'"
	}

	return fmt.Sprintf("'%s' is not a supported protocol. Allowed: [%s]",
		e.Protocol, strings.Join(quoted, ", "))
}

type TargetRegistry interface {
	// Resolve maps a protocol name to its deletion target. Lookups outside
	// the closed set fail with an error wrapping UnsupportedProtocolError.
	Resolve(protocol string) (*Target, error)
	// Protocols enumerates the allowed protocol names, sorted.
	Protocols() []string
}

type DestructionAPI interface {
	// ResolveProject returns the GCP project the targets live in.
	ResolveProject(ctx context.Context) (string, error)
	// ExistingKeys returns the subset of keys that currently have rows in
	// the target table.
	ExistingKeys(ctx context.Context, projectID string, target *Target, keys []string) ([]string, error)
	// DeleteRows deletes the rows of the target table whose key is in keys.
	DeleteRows(ctx context.Context, projectID string, target *Target, keys []string) error
}

type DestructionService interface {
	// DestroyRows deletes the rows matching connectIDs from the protocol's
	// target table and reports the deleted/not-found partition.
	DestroyRows(ctx context.Context, protocol string, connectIDs []string) (*DestructionResult, error)
}
