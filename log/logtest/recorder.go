/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"sync"
	"time"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-docsubmit/log"
)

// RecordedEntry is a logged message with all its fields (including the ones added by With).
type RecordedEntry struct {
	Text   string
	Level  log.Level
	Time   time.Time
	Fields []log.Field
}

// FindField returns the first field with the key.
func (re *RecordedEntry) FindField(key string) (*log.Field, bool) {
	for i := range re.Fields {
		if re.Fields[i].Key == key {
			return &re.Fields[i], true
		}
	}
	return nil, false
}

// Recorder is a log.FieldLogger that keeps every logged entry in memory.
// Loggers derived from it with With or WithLevel record into the same Recorder.
type Recorder struct {
	*log.LogfAdapter
	entries *entryStore
}

// NewRecorder returns a Recorder that records entries of all levels.
func NewRecorder() *Recorder {
	store := &entryStore{}
	return &Recorder{&log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, store)}, store}
}

// Entries returns a copy of all recorded entries.
func (r *Recorder) Entries() []RecordedEntry {
	return r.entries.filter(func(RecordedEntry) bool { return true })
}

// FindEntry returns the first entry with the message.
func (r *Recorder) FindEntry(msg string) (RecordedEntry, bool) {
	found := r.FindAllEntries(msg)
	if len(found) == 0 {
		return RecordedEntry{}, false
	}
	return found[0], true
}

// FindAllEntries returns all entries with the message.
func (r *Recorder) FindAllEntries(msg string) []RecordedEntry {
	return r.entries.filter(func(e RecordedEntry) bool { return e.Text == msg })
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.entries.mu.Lock()
	r.entries.list = nil
	r.entries.mu.Unlock()
}

// entryStore implements logf.EntryWriter.
type entryStore struct {
	mu   sync.RWMutex
	list []RecordedEntry
}

var levels = map[logf.Level]log.Level{
	logf.LevelError: log.LevelError,
	logf.LevelWarn:  log.LevelWarn,
	logf.LevelInfo:  log.LevelInfo,
	logf.LevelDebug: log.LevelDebug,
}

//nolint:gocritic
func (s *entryStore) WriteEntry(e logf.Entry) {
	fields := make([]log.Field, 0, len(e.Fields)+len(e.DerivedFields))
	fields = append(append(fields, e.Fields...), e.DerivedFields...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, RecordedEntry{Text: e.Text, Level: levels[e.Level], Time: e.Time, Fields: fields})
}

func (s *entryStore) filter(keep func(RecordedEntry) bool) []RecordedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []RecordedEntry
	for _, e := range s.list {
		if keep(e) {
			res = append(res, e)
		}
	}
	return res
}
