package proto

import (
	"errors"
	"fmt"
	"strings"
)

type MediaKind string

const (
	MediaBio   MediaKind = "bio"
	MediaCraft MediaKind = "craft"
)

// MediaKinds lists the media every artisan card must be able to play.
var MediaKinds = []MediaKind{MediaBio, MediaCraft}

func ParseMediaKind(s string) (MediaKind, error) {
	k := MediaKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range MediaKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

type Artisan struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Trade        string                `json:"trade"`
	PortraitPath string                `json:"portraitPath,omitempty"`
	Commands     map[MediaKind]Command `json:"commands"`
}

type Question struct {
	Key  string `json:"key"` // Command code sent when the question is picked
	Text string `json:"text"`
}

type QuestionGroup struct {
	Questions []Question `json:"questions"`
}

func (a *Artisan) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("artisan id is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("artisan %q: name is required", a.ID)
	}
	for kind := range a.Commands {
		if _, err := ParseMediaKind(string(kind)); err != nil {
			return fmt.Errorf("artisan %q: %w", a.ID, err)
		}
	}
	for _, kind := range MediaKinds {
		if strings.TrimSpace(string(a.Commands[kind])) == "" {
			return fmt.Errorf("artisan %q: missing %s command", a.ID, kind)
		}
	}
	return nil
}

func (g *QuestionGroup) Validate(artisan string) error {
	seen := make(map[string]struct{}, len(g.Questions))
	for i, q := range g.Questions {
		if strings.TrimSpace(q.Key) == "" {
			return fmt.Errorf("questions for %q: entry %d has no key", artisan, i)
		}
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("questions for %q: %q has no text", artisan, q.Key)
		}
		if _, dup := seen[q.Key]; dup {
			return fmt.Errorf("questions for %q: duplicate key %q", artisan, q.Key)
		}
		seen[q.Key] = struct{}{}
	}
	return nil
}
