package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/use-agent/scrapedeck/cleaner"
	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/store"
)

// Board is the ordered collection of entities. Entities share nothing but
// the fetcher and the renderer.
type Board struct {
	fetcher   Fetcher
	cleaner   *cleaner.Cleaner
	threshold int

	// runMu serializes FetchAll and Load so a refresh never interleaves with
	// a reload.
	runMu sync.Mutex

	mu       sync.Mutex
	entities []*Entity
	nextID   int
	status   string
}

// NewBoard creates an empty board. changeThreshold is the SimHash distance
// above which re-fetched text counts as changed (0 means any edit).
func NewBoard(f Fetcher, c *cleaner.Cleaner, changeThreshold int) *Board {
	return &Board{fetcher: f, cleaner: c, threshold: changeThreshold}
}

// Status returns the status line of the last board or entity operation.
func (b *Board) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// SetStatus records and logs a status line.
func (b *Board) SetStatus(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStatusLocked(msg)
}

func (b *Board) setStatusLocked(msg string) {
	b.status = msg
	slog.Info("board status", "status", msg)
}

// Add appends a new empty entity.
func (b *Board) Add() *Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked()
}

func (b *Board) addLocked() *Entity {
	e := NewEntity(strconv.Itoa(b.nextID), b.fetcher, b.cleaner)
	b.nextID++
	b.entities = append(b.entities, e)
	b.setStatusLocked("Added new entity")
	return e
}

// Get looks an entity up by id.
func (b *Board) Get(id string) (*Entity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entities {
		if e.id == id {
			return e, true
		}
	}
	return nil, false
}

// Remove deletes the entity with the given id.
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entities {
		if e.id == id {
			b.entities = append(b.entities[:i], b.entities[i+1:]...)
			b.setStatusLocked("Removed entity " + id)
			return true
		}
	}
	b.setStatusLocked("Cannot remove entity " + id)
	return false
}

// RemoveLast deletes the bottom-most entity.
func (b *Board) RemoveLast() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entities) == 0 {
		b.setStatusLocked("Cannot remove entity")
		return false
	}
	b.entities = b.entities[:len(b.entities)-1]
	b.setStatusLocked("Removed bottom most entity")
	return true
}

// RemoveAll empties the board and returns how many entities were removed.
func (b *Board) RemoveAll() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeAllLocked()
}

func (b *Board) removeAllLocked() int {
	n := len(b.entities)
	b.entities = nil
	b.setStatusLocked("Removed all entities")
	return n
}

// List returns the entities in board order.
func (b *Board) List() []*Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Entity, len(b.entities))
	copy(out, b.entities)
	return out
}

// Len returns the number of entities.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entities)
}

// Snapshots returns a view of every entity in board order.
func (b *Board) Snapshots() []models.EntityView {
	list := b.List()
	views := make([]models.EntityView, 0, len(list))
	for _, e := range list {
		views = append(views, e.Snapshot())
	}
	return views
}

// Fetch fetches one entity and reports changes against the board's
// threshold.
func (b *Board) Fetch(ctx context.Context, e *Entity) models.FetchReport {
	r := e.Fetch(ctx, b.threshold)
	if r.Error != nil {
		b.SetStatus(e.Message())
	} else {
		b.SetStatus(MsgFetchSucceeded)
	}
	return r
}

// FetchAll fetches every entity one after another, in board order, and
// returns one report per entity.
func (b *Board) FetchAll(ctx context.Context) []models.FetchReport {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	list := b.List()
	reports := make([]models.FetchReport, 0, len(list))
	failed := 0
	for _, e := range list {
		r := e.Fetch(ctx, b.threshold)
		if r.Error != nil {
			failed++
		}
		reports = append(reports, r)
	}
	b.SetStatus(fmt.Sprintf("Fetched %d entities (%d failed)", len(list), failed))
	return reports
}

// Records exports the configuration of every entity in board order.
func (b *Board) Records() []models.Record {
	list := b.List()
	records := make([]models.Record, 0, len(list))
	for _, e := range list {
		records = append(records, e.Record())
	}
	return records
}

// Save writes every entity's configuration to path.
func (b *Board) Save(path string) error {
	if err := store.Save(path, b.Records()); err != nil {
		b.SetStatus("Saving config failed: " + err.Error())
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	b.SetStatus("Config saved to " + abs)
	return nil
}

// Load replaces the board with the entities saved at path, fetching each one
// as it is created. A missing or malformed file leaves the board empty and
// returns a CONFIG_LOAD error.
func (b *Board) Load(ctx context.Context, path string) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.RemoveAll()

	entries, err := store.Load(path)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, store.ErrNotFound):
			msg = path + " not found. Check if file exists."
		case errors.Is(err, store.ErrMalformed):
			msg = path + " may be corrupted. Try recreating it with save."
		default:
			msg = "Load config failed: " + err.Error()
		}
		b.SetStatus(msg)
		return models.NewScrapeError(models.ErrCodeConfigLoad, msg, err)
	}

	for _, entry := range entries {
		e := b.Add()
		out := e.ApplyRecord(ctx, entry.Record)
		if out.Err != nil {
			slog.Warn("loaded entity did not fetch", "entity", e.ID(), "key", entry.Key, "error", out.Err)
		}
	}
	b.SetStatus("Load config succeeded.")
	return nil
}
