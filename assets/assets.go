package assets

import (
	_ "embed"
)

// License is the text of the MIT license BotRoss is released under.
//
//go:embed LICENSE
var License string
