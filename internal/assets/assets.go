package assets

import (
	_ "embed"
)

// TextBoxHTML is a local stand-in for the demoqa text-box page, served by
// the self-test fixture.
//
//go:embed textbox.html
var TextBoxHTML string
