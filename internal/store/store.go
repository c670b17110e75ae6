// Package store keeps photo metadata records and the registry of folder
// names in the application's settings storage.
//
// Every read-modify-write cycle in this package runs under one process-wide
// lock, shared by Photos and Folders. Nothing here is atomic across a crash.
package store

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

var mu sync.Mutex

var (
	ErrEmptyIdentifier = errors.New("empty photo identifier")
	ErrEmptyFolderName = errors.New("empty folder name")
)

// Options configures Photos and Folders.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time // nil = time.Now
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o Options) clock() func() time.Time {
	if o.Now == nil {
		return time.Now
	}
	return o.Now
}
