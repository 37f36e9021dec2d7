package entity

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/pkg/docstore"
)

// Detector caches one compiled dictionary per owner, keyed by the snapshot
// version, and recompiles lazily when the snapshot moves underneath it.
type Detector struct {
	docs *docstore.Store
	log  zerolog.Logger

	mu    sync.Mutex
	cache map[string]compiled
}

type compiled struct {
	version int64
	dict    *Dictionary
}

func NewDetector(docs *docstore.Store, log zerolog.Logger) *Detector {
	return &Detector{docs: docs, log: log, cache: make(map[string]compiled)}
}

// DetectEntities scans text against the owner's current dictionary. Compile
// failures degrade to no mentions; entity detection is advisory and must
// never break a chat turn.
func (d *Detector) DetectEntities(userID, text string) []string {
	dict := d.dictionary(userID)
	if dict == nil {
		return nil
	}
	return dict.Detect(text)
}

func (d *Detector) dictionary(userID string) *Dictionary {
	version := d.docs.Version()

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.cache[userID]; ok && c.version == version {
		return c.dict
	}

	dict, err := Compile(d.docs.Entries(userID))
	if err != nil {
		d.log.Warn().Err(err).Str("owner", userID).Msg("entity dictionary compile failed")
		return nil
	}
	d.cache[userID] = compiled{version: version, dict: dict}
	return dict
}
