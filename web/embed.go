// Package web embeds the dashboard page.
package web

import _ "embed"

//go:embed index.html
var Index []byte
