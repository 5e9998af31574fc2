package persona

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Registry is the ordered, immutable-after-startup set of persona profiles.
type Registry struct {
	mu       sync.RWMutex
	order    []types.PersonaID
	profiles map[types.PersonaID]*types.PersonaProfile
}

// NewRegistry builds a registry from profiles, keeping their order. Later
// duplicates replace earlier ones in place.
func NewRegistry(profiles ...*types.PersonaProfile) *Registry {
	r := &Registry{profiles: make(map[types.PersonaID]*types.PersonaProfile)}
	for _, p := range profiles {
		r.put(p)
	}
	return r
}

// Default returns a registry of the built-in personas.
func Default() *Registry {
	return NewRegistry(Builtin()...)
}

func (r *Registry) put(p *types.PersonaProfile) {
	if p == nil || p.ID == "" {
		return
	}
	if _, ok := r.profiles[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.profiles[p.ID] = p
}

// Profile returns the profile for id.
func (r *Registry) Profile(id types.PersonaID) (*types.PersonaProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	return p, ok
}

// IDs returns persona ids in registry order.
func (r *Registry) IDs() []types.PersonaID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.PersonaID(nil), r.order...)
}

// All returns the profiles in registry order.
func (r *Registry) All() []*types.PersonaProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.PersonaProfile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

// Len returns the number of profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Override is a partial profile read from YAML. Unset fields keep the
// built-in value.
type Override struct {
	ID              types.PersonaID   `yaml:"id"`
	Stage           *string           `yaml:"stage"`
	Color           *string           `yaml:"color"`
	Voice           *string           `yaml:"voice"`
	Stance          []string          `yaml:"stance"`
	Templates       *types.Templates  `yaml:"templates"`
	Callouts        []string          `yaml:"callouts"`
	Question        *string           `yaml:"question"`
	Keywords        []string          `yaml:"keywords"`
	Sources         []string          `yaml:"sources"`
	Boost           *float64          `yaml:"boost"`
	CultureBoost    *bool             `yaml:"culture_boost"`
	PeerPreferences []types.PersonaID `yaml:"peer_preferences"`
}

type overrideFile struct {
	Personas []Override `yaml:"personas"`
}

// LoadFile reads YAML overrides from path and applies them on top of the
// built-in profiles. Unknown ids add new personas after the built-ins.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}
	return Load(data)
}

// Load parses YAML overrides and applies them on top of the built-ins.
func Load(data []byte) (*Registry, error) {
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse personas file: %w", err)
	}

	r := Default()
	for i, o := range file.Personas {
		id := types.PersonaID(strings.ToUpper(strings.TrimSpace(string(o.ID))))
		if id == "" {
			return nil, fmt.Errorf("personas[%d]: missing id", i)
		}
		base, ok := r.profiles[id]
		if !ok {
			base = &types.PersonaProfile{ID: id}
		} else {
			base = clone(base)
		}
		o.apply(base)
		if err := validate(base); err != nil {
			return nil, fmt.Errorf("personas[%d] %s: %w", i, id, err)
		}
		r.put(base)
	}
	return r, nil
}

func (o *Override) apply(p *types.PersonaProfile) {
	if o.Stage != nil {
		p.Stage = *o.Stage
	}
	if o.Color != nil {
		p.Color = *o.Color
	}
	if o.Voice != nil {
		p.Voice = *o.Voice
	}
	if o.Stance != nil {
		p.Stance = o.Stance
	}
	if o.Templates != nil {
		if o.Templates.Opener != nil {
			p.Templates.Opener = o.Templates.Opener
		}
		if o.Templates.Take != nil {
			p.Templates.Take = o.Templates.Take
		}
		if o.Templates.Closer != nil {
			p.Templates.Closer = o.Templates.Closer
		}
	}
	if o.Callouts != nil {
		p.Callouts = o.Callouts
	}
	if o.Question != nil {
		p.Question = *o.Question
	}
	if o.Keywords != nil {
		p.Keywords = o.Keywords
	}
	if o.Sources != nil {
		p.Sources = o.Sources
	}
	if o.Boost != nil {
		p.Boost = *o.Boost
	}
	if o.CultureBoost != nil {
		p.CultureBoost = *o.CultureBoost
	}
	if o.PeerPreferences != nil {
		p.PeerPreferences = o.PeerPreferences
	}
}

func validate(p *types.PersonaProfile) error {
	if p.Voice == "" {
		return fmt.Errorf("voice is required")
	}
	if len(p.Templates.Opener) == 0 || len(p.Templates.Take) == 0 || len(p.Templates.Closer) == 0 {
		return fmt.Errorf("opener, take and closer templates are required")
	}
	if p.Boost < 0 {
		return fmt.Errorf("boost must not be negative")
	}
	return nil
}
