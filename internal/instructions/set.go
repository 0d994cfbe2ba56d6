// Package instructions manages the named system prompts a user can choose
// between. The built-in "Default" profile is always present.
package instructions

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

// DefaultName is the reserved profile that can be neither edited nor deleted.
const DefaultName = "Default"

//go:embed default.md
var defaultText string

// DefaultContent is the built-in strain research prompt.
var DefaultContent = strings.TrimRight(defaultText, "\n")

var (
	ErrReserved = errors.New("instruction profile is reserved")
	ErrNotFound = errors.New("instruction profile not found")
	ErrExists   = errors.New("instruction profile already exists")
	ErrEmpty    = errors.New("instruction name and content must not be empty")
)

// Profile is one named system prompt.
type Profile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Set is an ordered collection of profiles with an active pointer.
// Default is always the first entry.
type Set struct {
	profiles []Profile
	active   string
}

// NewSet returns a set holding only Default, which is active.
func NewSet() *Set {
	return &Set{
		profiles: []Profile{{Name: DefaultName, Content: DefaultContent}},
		active:   DefaultName,
	}
}

// Names returns profile names in creation order, Default first.
func (s *Set) Names() []string {
	names := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// Profiles returns a copy of every profile, Default first.
func (s *Set) Profiles() []Profile {
	out := make([]Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// Deletable returns every name except Default.
func (s *Set) Deletable() []string {
	return s.Names()[1:]
}

func (s *Set) Get(name string) (Profile, bool) {
	i := s.index(strings.TrimSpace(name))
	if i < 0 {
		return Profile{}, false
	}
	return s.profiles[i], true
}

// Active returns the profile whose content is sent as the system message.
func (s *Set) Active() Profile {
	if p, ok := s.Get(s.active); ok {
		return p
	}
	return s.profiles[0]
}

// Create adds a profile and makes it active.
func (s *Set) Create(name, content string) error {
	name = strings.TrimSpace(name)
	if err := validate(name, content); err != nil {
		return err
	}
	if s.index(name) >= 0 {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	s.profiles = append(s.profiles, Profile{Name: name, Content: content})
	s.active = name
	return nil
}

// Update replaces the content of an existing profile.
func (s *Set) Update(name, content string) error {
	name = strings.TrimSpace(name)
	if err := validate(name, content); err != nil {
		return err
	}
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.profiles[i].Content = content
	return nil
}

// Delete removes a profile. Deleting the active one makes Default active.
func (s *Set) Delete(name string) error {
	name = strings.TrimSpace(name)
	if name == DefaultName {
		return fmt.Errorf("%w: %q", ErrReserved, name)
	}
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.profiles = append(s.profiles[:i:i], s.profiles[i+1:]...)
	if s.active == name {
		s.active = DefaultName
	}
	return nil
}

// Select makes name the active profile.
func (s *Set) Select(name string) error {
	name = strings.TrimSpace(name)
	if s.index(name) < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.active = name
	return nil
}

func (s *Set) index(name string) int {
	for i, p := range s.profiles {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func validate(name, content string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
		return ErrEmpty
	}
	if name == DefaultName {
		return fmt.Errorf("%w: %q", ErrReserved, name)
	}
	return nil
}
