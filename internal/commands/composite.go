package commands

// Composite groups subcommands into a single history entry. Apply runs
// them in order; a mid-apply failure unwinds the prefix that already
// applied and surfaces the original error. Undo runs in reverse order.
type Composite struct {
	Name  string
	Parts []Command
}

func (c *Composite) Kind() string {
	if c.Name != "" {
		return c.Name
	}
	return "composite"
}

func (c *Composite) Apply(env *Env) error {
	for i, p := range c.Parts {
		if err := p.Apply(env); err != nil {
			// Best-effort unwind; the apply error is the one to report.
			for j := i - 1; j >= 0; j-- {
				_ = c.Parts[j].Undo(env)
			}
			return err
		}
	}
	return nil
}

func (c *Composite) Undo(env *Env) error {
	for i := len(c.Parts) - 1; i >= 0; i-- {
		if err := c.Parts[i].Undo(env); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) Redo(env *Env) error {
	for _, p := range c.Parts {
		if err := p.Redo(env); err != nil {
			return err
		}
	}
	return nil
}
