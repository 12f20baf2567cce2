package present

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"

	"github.com/minios-linux/d2dedup/dedupe"
	"github.com/minios-linux/d2dedup/i18n"
	"github.com/minios-linux/d2dedup/langmeta"
)

// ErrAborted is returned when the user leaves a prompt with Esc or Ctrl+C.
var ErrAborted = errors.New("aborted by user")

// dropChoice is the select value meaning "keep none of them".
const dropChoice = -1

// Interactive collects winner choices, object inclusion and confirmations
// through huh forms.
type Interactive struct {
	Log *log.Logger

	run func(*huh.Form) error
}

// NewInteractive creates an interactive prompter.
func NewInteractive(logger *log.Logger) *Interactive {
	if logger == nil {
		logger = log.Default()
	}
	return &Interactive{Log: logger, run: func(f *huh.Form) error { return f.Run() }}
}

func (in *Interactive) runForm(f *huh.Form) error {
	err := in.run(f)
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	if err != nil {
		return fmt.Errorf("running prompt: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Winners
// ---------------------------------------------------------------------------

// winnerPrompt binds one select per group of a single object.
type winnerPrompt struct {
	groups  []dedupe.DuplicateGroup
	choices []int
}

func newWinnerPrompt(groups []dedupe.DuplicateGroup) *winnerPrompt {
	p := &winnerPrompt{groups: groups, choices: make([]int, len(groups))}
	for i, g := range groups {
		p.choices[i] = dropChoice
		for j, m := range g.Members {
			if m.Selected {
				p.choices[i] = j
				break
			}
		}
	}
	return p
}

func (p *winnerPrompt) form() *huh.Form {
	first := p.groups[0]
	fields := make([]huh.Field, 0, len(p.groups))
	for i, g := range p.groups {
		opts := make([]huh.Option[int], 0, len(g.Members)+1)
		for j, m := range g.Members {
			opts = append(opts, huh.NewOption(runewidth.Truncate(m.Value, 2*MaxValueWidth, "…"), j))
		}
		opts = append(opts, huh.NewOption(i18n.T("(none, remove this translation)"), dropChoice))

		title := fmt.Sprintf("%s · %s", langmeta.Label(g.Key.Locale), g.Key.Property)
		if i == 0 {
			title = fmt.Sprintf("%s %s (%s)\n%s", first.Type.Plural, first.ObjectName, first.ObjectID, title)
		}
		fields = append(fields, huh.NewSelect[int]().
			Title(title).
			Options(opts...).
			Value(&p.choices[i]))
	}
	return huh.NewForm(huh.NewGroup(fields...))
}

// apply pushes the bound choices into s.
func (p *winnerPrompt) apply(s *State) error {
	for i, g := range p.groups {
		c := p.choices[i]
		if c == dropChoice {
			if err := s.Unselect(g.ID()); err != nil {
				return err
			}
			continue
		}
		if c < 0 || c >= len(g.Members) {
			return fmt.Errorf("choice %d out of range for %s", c, g.ID())
		}
		if err := s.Select(g.ID(), g.Members[c].Key()); err != nil {
			return err
		}
	}
	return nil
}

// ChooseWinners asks, object by object, which value should survive in each
// duplicate group. Only objects in ids are asked about; nil means all.
func (in *Interactive) ChooseWinners(s *State, ids []string) error {
	if ids == nil {
		ids = s.ObjectIDs()
	}
	for n, id := range ids {
		groups := s.GroupsFor(id)
		if len(groups) == 0 {
			continue
		}
		in.Log.Debug("choosing winners", "object", id, "step", fmt.Sprintf("%d/%d", n+1, len(ids)))

		p := newWinnerPrompt(groups)
		if err := in.runForm(p.form()); err != nil {
			return err
		}
		if err := p.apply(s); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// objectPrompt binds a multi-select over the objects of the working set.
type objectPrompt struct {
	options []huh.Option[string]
	chosen  []string
}

func newObjectPrompt(s *State) *objectPrompt {
	p := &objectPrompt{}
	for _, id := range s.ObjectIDs() {
		groups := s.GroupsFor(id)
		g := groups[0]
		keys := make([]string, len(groups))
		for i, gg := range groups {
			keys[i] = gg.Key.String()
		}
		label := fmt.Sprintf("%s %s (%s): %s", g.Type.Plural, runewidth.Truncate(g.ObjectName, MaxValueWidth, "…"), id, strings.Join(keys, ", "))
		p.options = append(p.options, huh.NewOption(label, id))
		if s.IsIncluded(id) {
			p.chosen = append(p.chosen, id)
		}
	}
	return p
}

func (p *objectPrompt) form() *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title(i18n.T("Objects to fix")).
			Description(i18n.T("space toggles, ctrl+a selects all")).
			Options(p.options...).
			Filterable(true).
			Value(&p.chosen),
	))
}

func (p *objectPrompt) apply(s *State) {
	s.SelectNone()
	s.Include(p.chosen...)
}

// ChooseObjects lets the user mark objects for write-back.
func (in *Interactive) ChooseObjects(s *State) error {
	if s.Len() == 0 {
		return nil
	}
	p := newObjectPrompt(s)
	if err := in.runForm(p.form()); err != nil {
		return err
	}
	p.apply(s)
	return nil
}

// ---------------------------------------------------------------------------
// Confirmation and credentials
// ---------------------------------------------------------------------------

// Confirm asks a yes/no question.
func (in *Interactive) Confirm(title string) (bool, error) {
	ok := false
	f := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative(i18n.T("Yes")).
			Negative(i18n.T("No")).
			Value(&ok),
	))
	if err := in.runForm(f); err != nil {
		return false, err
	}
	return ok, nil
}

// Credentials is what the login prompt collects.
type Credentials struct {
	Kind     string
	Username string
	Secret   string
}

func (c *Credentials) form() *huh.Form {
	notEmpty := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(i18n.T("value required"))
		}
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(i18n.T("Authentication")).
				Options(
					huh.NewOption(i18n.T("Username and password"), "basic"),
					huh.NewOption(i18n.T("Personal access token"), "token"),
				).
				Value(&c.Kind),
		),
		huh.NewGroup(
			huh.NewInput().Title(i18n.T("Username")).Value(&c.Username).Validate(notEmpty),
			huh.NewInput().Title(i18n.T("Password")).EchoMode(huh.EchoModePassword).Value(&c.Secret),
		).WithHideFunc(func() bool { return c.Kind != "basic" }),
		huh.NewGroup(
			huh.NewInput().Title(i18n.T("Token")).EchoMode(huh.EchoModePassword).Value(&c.Secret).Validate(notEmpty),
		).WithHideFunc(func() bool { return c.Kind != "token" }),
	)
}

// AskCredentials prompts for the credentials of server. Fields already set
// in c are used as defaults.
func (in *Interactive) AskCredentials(server string, c *Credentials) error {
	if c.Kind == "" {
		c.Kind = "basic"
	}
	in.Log.Info("logging in", "server", server)
	return in.runForm(c.form())
}
