// Package deck loads the ordered photo sequence and the fixed persona
// instructions. Both are startup data: missing or malformed files are fatal,
// the session never starts without them.
package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/keepsakelabs/keepsake-core/internal/relationship"
)

// DefaultOpening is spoken for photos without an initial_prompt override.
const DefaultOpening = "Oooh, look at this photo! Who do you see?"

// Photo is one immutable entry in the deck.
type Photo struct {
	ID            int    `json:"-"`
	File          string `json:"file"`
	Description   string `json:"description"`
	InitialPrompt string `json:"initial_prompt,omitempty"`
}

// Opening returns the photo's opening line, falling back to the default.
func (p Photo) Opening() string {
	if p.InitialPrompt != "" {
		return p.InitialPrompt
	}
	return DefaultOpening
}

// Deck is the ordered photo sequence with ground truth precomputed per photo.
// Descriptions are immutable, so extraction runs once at load.
type Deck struct {
	photos []Photo
	truth  []relationship.Set
}

// Load reads a JSON photo array from path. The file must exist, parse, and
// contain at least one photo.
func Load(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck file: %w", err)
	}
	var photos []Photo
	if err := json.Unmarshal(data, &photos); err != nil {
		return nil, fmt.Errorf("parse deck file: %w", err)
	}
	if len(photos) == 0 {
		return nil, errors.New("deck is empty")
	}
	truth := make([]relationship.Set, len(photos))
	for i := range photos {
		photos[i].ID = i
		truth[i] = relationship.Extract(photos[i].Description)
	}
	return &Deck{photos: photos, truth: truth}, nil
}

// Size returns the number of photos in the deck.
func (d *Deck) Size() int { return len(d.photos) }

// Photo returns the photo at index. Index must be in range.
func (d *Deck) Photo(index int) Photo { return d.photos[index] }

// GroundTruth returns the cached label set for the photo at index.
func (d *Deck) GroundTruth(index int) relationship.Set { return d.truth[index] }

// LoadInstructions reads the persona guidance text passed verbatim into every
// generation request. Fatal if missing or blank.
func LoadInstructions(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read instructions file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("instructions file is empty")
	}
	return text, nil
}
