package harness

import (
	"slices"

	"github.com/roach88/affinity/internal/ui"
)

// Fixture builds a node tree for scenarios.
type Fixture = Factory[ui.Node]

// DefaultVerifier is the verifier the verifier-button fixture starts with.
const DefaultVerifier = "default"

var fixtures = map[string]Fixture{
	"verifier-button": VerifierButton,
	"button-row":      ButtonRow,
}

// LookupFixture returns the fixture registered under name.
func LookupFixture(name string) (Fixture, bool) {
	f, ok := fixtures[name]
	return f, ok
}

// FixtureNames lists the registered fixtures, sorted.
func FixtureNames() []string {
	names := make([]string, 0, len(fixtures))
	for name := range fixtures {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// VerifierButton builds a user control whose only interactive element is
// a button named "testButton" carrying the default verifier, so it starts
// enabled.
func VerifierButton(app *ui.Application, _ *ui.Window) (ui.Node, error) {
	control := ui.NewUserControl(app, "testControl")
	layout := ui.NewPanel(app, "layout")
	button := ui.NewButton(app, "testButton", "Verify")

	if err := ui.SetVerifier(button, &ui.Verifier{Name: DefaultVerifier}); err != nil {
		return nil, err
	}

	layout.Add(button)
	control.SetContent(layout)
	return control, nil
}

// ButtonRow builds a panel of three buttons, "first", "second" and
// "third", none with a verifier.
func ButtonRow(app *ui.Application, _ *ui.Window) (ui.Node, error) {
	row := ui.NewPanel(app, "row")
	for _, name := range []string{"first", "second", "third"} {
		row.Add(ui.NewButton(app, name, name))
	}
	return row, nil
}
