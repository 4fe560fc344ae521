package scenario

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/studiowebux/chatload/internal/chatapi"
	"github.com/studiowebux/chatload/internal/loadtest"
)

// ProfileOverride replaces the defaults of one class. Zero fields keep the default.
type ProfileOverride struct {
	Weight  int           `yaml:"weight"`
	MinWait time.Duration `yaml:"minWait"`
	MaxWait time.Duration `yaml:"maxWait"`
}

// Options configures the user classes
type Options struct {
	Model     string
	Overrides map[string]ProfileOverride
}

type classDefaults struct {
	name    string
	weight  int
	minWait time.Duration
	maxWait time.Duration
	newUser func(api *chatapi.API, env *loadtest.Environment) loadtest.User
}

var defaults = []classDefaults{
	{
		name: ClassChat, weight: 1, minWait: 1 * time.Second, maxWait: 5 * time.Second,
		newUser: func(api *chatapi.API, env *loadtest.Environment) loadtest.User {
			return NewChatUser(api, env.Logger)
		},
	},
	{
		name: ClassHighFrequency, weight: 2, minWait: 500 * time.Millisecond, maxWait: 2 * time.Second,
		newUser: func(api *chatapi.API, env *loadtest.Environment) loadtest.User {
			return NewHighFrequencyUser(api, env.Logger)
		},
	},
	{
		name: ClassLowFrequency, weight: 1, minWait: 10 * time.Second, maxWait: 30 * time.Second,
		newUser: func(api *chatapi.API, env *loadtest.Environment) loadtest.User {
			return NewLowFrequencyUser(api, env.Logger)
		},
	},
}

// ClassNames returns the names of every built-in class
func ClassNames() []string {
	names := make([]string, 0, len(defaults))
	for _, d := range defaults {
		names = append(names, d.name)
	}
	return names
}

// Classes builds the three user classes with overrides applied
func Classes(opts Options) ([]*loadtest.UserClass, error) {
	for name := range opts.Overrides {
		if !isKnownClass(name) {
			return nil, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(ClassNames(), ", "))
		}
	}

	classes := make([]*loadtest.UserClass, 0, len(defaults))
	for _, d := range defaults {
		weight, minWait, maxWait := d.weight, d.minWait, d.maxWait
		if o, ok := opts.Overrides[d.name]; ok {
			if o.Weight != 0 {
				weight = o.Weight
			}
			if o.MinWait != 0 {
				minWait = o.MinWait
			}
			if o.MaxWait != 0 {
				maxWait = o.MaxWait
			}
		}
		if weight < 0 {
			return nil, fmt.Errorf("profile %q: weight cannot be negative", d.name)
		}
		if minWait < 0 || maxWait < minWait {
			return nil, fmt.Errorf("profile %q: wait bounds must satisfy 0 <= min <= max", d.name)
		}

		newUser := d.newUser
		model := opts.Model
		classes = append(classes, &loadtest.UserClass{
			Name:     d.name,
			Weight:   weight,
			WaitTime: loadtest.Between(minWait, maxWait),
			New: func(env *loadtest.Environment) loadtest.User {
				return newUser(chatapi.New(env.Client, model), env)
			},
		})
	}
	return classes, nil
}

// Select keeps only the named classes. An empty list keeps all of them.
func Select(classes []*loadtest.UserClass, names []string) ([]*loadtest.UserClass, error) {
	if len(names) == 0 {
		return classes, nil
	}
	byName := make(map[string]*loadtest.UserClass, len(classes))
	for _, c := range classes {
		byName[c.Name] = c
	}

	selected := make([]*loadtest.UserClass, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		c, ok := byName[name]
		if !ok {
			known := make([]string, 0, len(byName))
			for n := range byName {
				known = append(known, n)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(known, ", "))
		}
		if !seen[name] {
			seen[name] = true
			selected = append(selected, c)
		}
	}
	return selected, nil
}

func isKnownClass(name string) bool {
	for _, d := range defaults {
		if d.name == name {
			return true
		}
	}
	return false
}
