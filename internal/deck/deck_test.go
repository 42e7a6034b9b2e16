package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keepsakelabs/keepsake-core/internal/relationship"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "photos.json", `[
		{"file": "beach.jpg", "description": "My with her mom and brother at the beach"},
		{"file": "garden.jpg", "description": "grandmother in the garden", "initial_prompt": "Look who's here!"}
	]`)

	d, err := Load(path)
	if err != nil {
		t.Fatalf("load deck: %v", err)
	}
	if d.Size() != 2 {
		t.Fatalf("expected 2 photos, got %d", d.Size())
	}
	if d.Photo(0).ID != 0 || d.Photo(1).ID != 1 {
		t.Fatal("expected IDs assigned by position")
	}
	if d.Photo(0).Opening() != DefaultOpening {
		t.Fatalf("expected default opening, got %q", d.Photo(0).Opening())
	}
	if d.Photo(1).Opening() != "Look who's here!" {
		t.Fatalf("expected override opening, got %q", d.Photo(1).Opening())
	}

	truth := d.GroundTruth(0)
	if !truth.Has(relationship.Mom) || !truth.Has(relationship.Brother) {
		t.Fatalf("expected Mom and Brother in ground truth, got %v", truth.Labels())
	}
	if !d.GroundTruth(1).Has(relationship.Grandmom) {
		t.Fatalf("expected Grandmom in ground truth, got %v", d.GroundTruth(1).Labels())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing deck file")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, "photos.json", `{"not": "an array"}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed deck file")
	}
}

func TestLoadEmptyDeck(t *testing.T) {
	path := writeFile(t, "photos.json", `[]`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty deck")
	}
}

func TestLoadInstructions(t *testing.T) {
	path := writeFile(t, "instructions.txt", "Speak slowly. Be kind.\n")
	text, err := LoadInstructions(path)
	if err != nil {
		t.Fatalf("load instructions: %v", err)
	}
	if text != "Speak slowly. Be kind." {
		t.Fatalf("unexpected instructions: %q", text)
	}

	if _, err := LoadInstructions(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing instructions")
	}

	blank := writeFile(t, "blank.txt", "  \n ")
	if _, err := LoadInstructions(blank); err == nil {
		t.Fatal("expected error for blank instructions")
	}
}
