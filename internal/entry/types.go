package entry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one configured TV.
type Entry struct {
	ID        string    `json:"id"`
	UniqueID  string    `json:"unique_id"`
	Title     string    `json:"title"`
	Port      string    `json:"port"`
	TVID      int       `json:"tv_id"`
	Options   Options   `json:"options"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Options are user-editable settings applied on the next load.
type Options struct {
	// TVID replaces the set ID chosen at setup when non-nil.
	TVID *int `json:"tv_id,omitempty"`
}

// New builds an entry for a TV that has just been validated.
func New(port string, tvID int) Entry {
	return Entry{
		ID:       uuid.NewString(),
		UniqueID: UniqueID(tvID),
		Title:    fmt.Sprintf("LG TV %d", tvID),
		Port:     port,
		TVID:     tvID,
	}
}

// UniqueID returns the duplicate-detection key for a set ID.
func UniqueID(tvID int) string {
	return fmt.Sprintf("lg_tv_%d", tvID)
}

// EffectiveTVID is the set ID to talk to: the option when set, else the
// ID chosen at setup.
func (e Entry) EffectiveTVID() int {
	if e.Options.TVID != nil {
		return *e.Options.TVID
	}
	return e.TVID
}
