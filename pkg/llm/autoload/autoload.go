// Package autoload registers every built-in AI provider factory.
package autoload

import (
	_ "friday/pkg/llm/gemini"
	_ "friday/pkg/llm/ollama"
	_ "friday/pkg/llm/openailm"
)
