// Package culler finds metadata records whose photo no longer exists.
package culler

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/store"
)

// Status represents whether a record's photo could be found.
type Status int

const (
	Present    Status = iota
	Missing           // the photo is gone
	Unreadable        // permission denied or another lookup error
)

func (s Status) String() string {
	switch s {
	case Present:
		return "present"
	case Missing:
		return "missing"
	default:
		return "unreadable"
	}
}

// Result holds the check result for a single record.
type Result struct {
	Photo  *model.Photo
	Status Status
	Error  string // lookup error for unreadable photos
}

// Prober looks up the photo behind an identifier.
type Prober interface {
	Stat(id string) error
}

// ProgressFunc is called after each record is checked.
type ProgressFunc func(completed, total int)

// Check probes every record concurrently and returns results in input order.
func Check(photos []model.Photo, probe Prober, concurrency int, onProgress ProgressFunc) []Result {
	if len(photos) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(photos))
	jobs := make(chan int, len(photos))
	var wg sync.WaitGroup

	var progressMu sync.Mutex
	completed := 0

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = check(probe, &photos[idx])

				if onProgress != nil {
					progressMu.Lock()
					completed++
					onProgress(completed, len(photos))
					progressMu.Unlock()
				}
			}
		}()
	}

	for i := range photos {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

func check(probe Prober, p *model.Photo) Result {
	err := probe.Stat(p.ID)
	switch {
	case err == nil:
		return Result{Photo: p, Status: Present}
	case errors.Is(err, media.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return Result{Photo: p, Status: Missing}
	default:
		return Result{Photo: p, Status: Unreadable, Error: err.Error()}
	}
}

// Filter returns the results with the given status.
func Filter(results []Result, status Status) []Result {
	var out []Result
	for _, r := range results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Cull removes the records of missing photos and returns how many went.
// Unreadable photos are kept.
func Cull(results []Result, records *store.Photos) (int, error) {
	removed := 0
	for _, r := range Filter(results, Missing) {
		if err := records.Remove(r.Photo.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
