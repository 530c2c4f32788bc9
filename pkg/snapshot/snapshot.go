// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot stores raw artifacts from recent requests, such as the
// last search results page, for debugging selector drift.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leseb/ragproxy/pkg/provider"
)

var (
	// ErrNotFound is returned when no snapshot exists under a name.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidName is returned for names that are empty or contain
	// path separators.
	ErrInvalidName = errors.New("invalid snapshot name")
)

// Providers is the registry of snapshot store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/ragproxy/pkg/snapshot/memory"
//	import _ "github.com/leseb/ragproxy/pkg/snapshot/filesystem"
//	import _ "github.com/leseb/ragproxy/pkg/snapshot/s3"
var Providers = provider.NewRegistry[Store]("snapshot")

// Snapshot is a named blob. Put overwrites any previous snapshot with the
// same name.
type Snapshot struct {
	Name        string
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// Store defines the interface for pluggable snapshot backends.
type Store interface {
	Put(ctx context.Context, snap *Snapshot) error
	Get(ctx context.Context, name string) (*Snapshot, error)
	Close(ctx context.Context) error
}

// ValidateName rejects names that could escape a backend's namespace.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
