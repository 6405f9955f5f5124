// Package roster is the classroom participant directory. Entries arrive either
// as a bare name or as a {fullName, initials} record; both are normalized to
// domain.Participant here so nothing downstream has to care.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"classroom-competition/internal/domain"
	"gopkg.in/yaml.v3"
)

// Entry is one participant as written in config or a request payload.
type Entry struct {
	FullName string `yaml:"fullName" json:"fullName"`
	Name     string `yaml:"name" json:"name"`
	Initials string `yaml:"initials" json:"initials"`
}

func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*e = Entry{FullName: value.Value}
		return nil
	}
	type plain Entry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*e = Entry{FullName: name}
		return nil
	}
	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Participant normalizes the entry. Name is accepted as an alias of FullName.
func (e Entry) Participant() domain.Participant {
	name := strings.TrimSpace(e.FullName)
	if name == "" {
		name = strings.TrimSpace(e.Name)
	}
	initials := strings.TrimSpace(e.Initials)
	if initials == "" {
		initials = Initials(name)
	}
	return domain.Participant{FullName: name, Initials: initials}
}

// Room is a breakout room and who is in it.
type Room struct {
	Name         string  `yaml:"name" json:"name"`
	Participants []Entry `yaml:"participants" json:"participants"`
}

// Classroom is the roster of one class.
type Classroom struct {
	Teacher   Entry   `yaml:"teacher" json:"teacher"`
	Rooms     []Room  `yaml:"rooms" json:"rooms"`
	Available []Entry `yaml:"available" json:"available"`
}

// Students returns every non-teacher participant once, rooms first in room
// order, then users not yet assigned to a room.
func (c Classroom) Students() []domain.Participant {
	teacher := c.Teacher.Participant().FullName
	seen := make(map[string]bool)
	var out []domain.Participant

	add := func(e Entry) {
		p := e.Participant()
		if p.FullName == "" || p.FullName == teacher || seen[p.FullName] {
			return
		}
		seen[p.FullName] = true
		out = append(out, p)
	}
	for _, room := range c.Rooms {
		for _, e := range room.Participants {
			add(e)
		}
	}
	for _, e := range c.Available {
		add(e)
	}
	return out
}

// Initials takes the first letters of the first and last words, or the first
// two characters of a single-word name.
func Initials(fullName string) string {
	parts := strings.Fields(fullName)
	switch {
	case len(parts) == 0:
		return "??"
	case len(parts) >= 2:
		first := []rune(parts[0])[0]
		last := []rune(parts[len(parts)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
	r := []rune(parts[0])
	if len(r) == 1 {
		return string(unicode.ToUpper(r[0]))
	}
	return string(unicode.ToUpper(r[0])) + string(r[1])
}

// Directory serves classroom rosters held in memory.
type Directory struct {
	mu         sync.RWMutex
	classrooms map[string]Classroom
}

func NewDirectory(classrooms map[string]Classroom) *Directory {
	d := &Directory{classrooms: make(map[string]Classroom, len(classrooms))}
	for id, c := range classrooms {
		d.classrooms[id] = c
	}
	return d
}

// Roster returns the teacher and the students of a classroom.
func (d *Directory) Roster(_ context.Context, classroomID string) (domain.Participant, []domain.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.classrooms[classroomID]
	if !ok {
		return domain.Participant{}, nil, fmt.Errorf("roster %q: %w", classroomID, domain.ErrClassroomNotFound)
	}
	return c.Teacher.Participant(), c.Students(), nil
}

// Put replaces a classroom roster.
func (d *Directory) Put(classroomID string, c Classroom) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classrooms[classroomID] = c
}
