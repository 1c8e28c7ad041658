package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mbocsi/kiosk/proto"
)

// DefaultPortrait is used when an artisan has no portrait of its own.
const DefaultPortrait = "default"

// Catalog is the validated command vocabulary: which command every card
// button and every question sends.
type Catalog struct {
	artisans  []proto.Artisan
	byID      map[string]int
	byName    map[string]int // normalized name -> index
	questions map[string][]proto.Question // artisan id -> questions
}

// Load reads the artisan list and the question groups from disk.
func Load(artisansPath, questionsPath string) (*Catalog, error) {
	artisans, err := os.ReadFile(artisansPath)
	if err != nil {
		return nil, fmt.Errorf("read artisans: %w", err)
	}
	var questions []byte
	if questionsPath != "" {
		questions, err = os.ReadFile(questionsPath)
		if err != nil {
			return nil, fmt.Errorf("read questions: %w", err)
		}
	}
	return Parse(artisans, questions)
}

// Parse decodes and validates both documents. Question groups are keyed by
// artisan name, matched case-insensitively. Any inconsistency fails the load.
func Parse(artisansJSON, questionsJSON []byte) (*Catalog, error) {
	var artisans []proto.Artisan
	if err := json.Unmarshal(artisansJSON, &artisans); err != nil {
		return nil, fmt.Errorf("parse artisans: %w", err)
	}
	if len(artisans) == 0 {
		return nil, fmt.Errorf("parse artisans: no artisans defined")
	}

	c := &Catalog{
		artisans:  artisans,
		byID:      make(map[string]int, len(artisans)),
		byName:    make(map[string]int, len(artisans)),
		questions: make(map[string][]proto.Question),
	}

	for i := range c.artisans {
		a := &c.artisans[i]
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate artisan id %q", a.ID)
		}
		c.byID[a.ID] = i

		name := normalize(a.Name)
		if other, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("artisans %q and %q share the name %q", c.artisans[other].ID, a.ID, a.Name)
		}
		c.byName[name] = i
	}

	if len(questionsJSON) == 0 {
		return c, nil
	}

	var groups map[string]proto.QuestionGroup
	if err := json.Unmarshal(questionsJSON, &groups); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	for name, group := range groups {
		a, ok := c.ArtisanByName(name)
		if !ok {
			return nil, fmt.Errorf("questions for unknown artisan %q", name)
		}
		id := a.ID
		if err := group.Validate(name); err != nil {
			return nil, err
		}
		if _, dup := c.questions[id]; dup {
			return nil, fmt.Errorf("questions for %q defined twice", name)
		}
		c.questions[id] = group.Questions
	}

	return c, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Artisans returns the artisans in carousel order.
func (c *Catalog) Artisans() []proto.Artisan {
	out := make([]proto.Artisan, len(c.artisans))
	copy(out, c.artisans)
	return out
}

func (c *Catalog) Len() int {
	return len(c.artisans)
}

func (c *Catalog) Artisan(id string) (proto.Artisan, bool) {
	i, ok := c.byID[id]
	if !ok {
		return proto.Artisan{}, false
	}
	return c.artisans[i], true
}

// ArtisanByName matches the way the question overlay finds its group.
func (c *Catalog) ArtisanByName(name string) (proto.Artisan, bool) {
	i, ok := c.byName[normalize(name)]
	if !ok {
		return proto.Artisan{}, false
	}
	return c.artisans[i], true
}

func (c *Catalog) MediaCommand(id string, kind proto.MediaKind) (proto.Command, error) {
	a, ok := c.Artisan(id)
	if !ok {
		return "", fmt.Errorf("unknown artisan %q", id)
	}
	cmd, ok := a.Commands[kind]
	if !ok {
		return "", fmt.Errorf("artisan %q has no %s media", id, kind)
	}
	return cmd, nil
}

// Questions returns the artisan's questions; an artisan without a group has
// an empty menu.
func (c *Catalog) Questions(id string) ([]proto.Question, error) {
	if _, ok := c.byID[id]; !ok {
		return nil, fmt.Errorf("unknown artisan %q", id)
	}
	qs := c.questions[id]
	out := make([]proto.Question, len(qs))
	copy(out, qs)
	return out, nil
}

func (c *Catalog) Question(id, key string) (proto.Question, error) {
	qs, err := c.Questions(id)
	if err != nil {
		return proto.Question{}, err
	}
	for _, q := range qs {
		if q.Key == key {
			return q, nil
		}
	}
	return proto.Question{}, fmt.Errorf("artisan %q has no question %q", id, key)
}

func (c *Catalog) Portrait(a proto.Artisan) string {
	if strings.TrimSpace(a.PortraitPath) == "" {
		return DefaultPortrait
	}
	return a.PortraitPath
}

// Commands lists every command the catalog can send, for diagnostics.
func (c *Catalog) Commands() []proto.Command {
	var out []proto.Command
	for _, a := range c.artisans {
		for _, kind := range proto.MediaKinds {
			out = append(out, a.Commands[kind])
		}
		for _, q := range c.questions[a.ID] {
			out = append(out, proto.Command(q.Key))
		}
	}
	return out
}
