// Package persona holds the victim identity the responder plays, the bait
// data it may disclose, and the behavioural profiles that shade its replies.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var catalogYAML []byte

type Identity struct {
	Name          string `yaml:"name"`
	Age           int    `yaml:"age"`
	Gender        string `yaml:"gender"`
	Occupation    string `yaml:"occupation"`
	Communication string `yaml:"communication"`
	TechLevel     string `yaml:"tech_level"`
}

// Bait is mock banking data the persona can hand out.
type Bait struct {
	Bank         string   `yaml:"bank"`
	Account      string   `yaml:"account"`
	AccountType  string   `yaml:"account_type"`
	IFSC         string   `yaml:"ifsc"`
	UPIIDs       []string `yaml:"upi_ids"`
	Card         string   `yaml:"card"`
	CardLastFour string   `yaml:"card_last_four"`
}

// Profile is a behavioural overlay selectable per request.
type Profile struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	Description      string   `yaml:"description" json:"description"`
	Traits           []string `yaml:"traits" json:"traits"`
	TypicalResponses []string `yaml:"typical_responses" json:"typicalResponses"`
	WhyModeled       string   `yaml:"why_modeled" json:"whyModeled"`
}

// Catalog is the parsed persona document.
type Catalog struct {
	Identity   Identity  `yaml:"identity"`
	Bait       Bait      `yaml:"bait"`
	WillShare  []string  `yaml:"will_share"`
	NeverShare []string  `yaml:"never_share"`
	Profiles   []Profile `yaml:"personas"`

	byID map[string]int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("persona: decode catalog: %w", err)
	}
	if strings.TrimSpace(c.Identity.Name) == "" {
		return nil, errors.New("persona: identity name is required")
	}
	if len(c.NeverShare) == 0 {
		return nil, errors.New("persona: never-share list must not be empty")
	}
	c.byID = make(map[string]int, len(c.Profiles))
	for i, p := range c.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("persona: profile %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona: duplicate profile id %q", p.ID)
		}
		c.byID[p.ID] = i
	}
	return &c, nil
}

// Profile returns the behavioural profile with the given id.
func (c *Catalog) Profile(id string) (Profile, bool) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Profile{}, false
	}
	return c.Profiles[i], true
}
