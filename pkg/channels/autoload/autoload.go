// Package autoload registers every built-in channel factory.
package autoload

import (
	_ "friday/pkg/channels/mcp"
	_ "friday/pkg/channels/web"
)
